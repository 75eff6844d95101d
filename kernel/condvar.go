package kernel

// CondVar is a condition variable used together with the mutexes of the
// same kernel. Waiters are served in arrival order.
type CondVar struct {
	k     *Kernel
	queue threadsQueue
}

// NewCondVar returns a condition variable of k.
func NewCondVar(k *Kernel) *CondVar {
	c := &CondVar{}
	c.Init(k)
	return c
}

// Init binds c to k.
func (c *CondVar) Init(k *Kernel) {
	c.k = k
	c.queue.init()
}

// SignalI readies the oldest waiter, if any.
func (c *CondVar) SignalI() {
	c.k.checkClassI()
	if c.queue.notEmpty() {
		c.k.ReadyI(c.queue.fifoRemove(), MsgOK)
	}
}

// Signal wakes the oldest waiter, if any.
func (c *CondVar) Signal() {
	k := c.k
	k.Lock()
	if c.queue.notEmpty() {
		k.WakeupS(c.queue.fifoRemove(), MsgOK)
	}
	k.Unlock()
}

// BroadcastI readies every waiter.
func (c *CondVar) BroadcastI() {
	c.k.checkClassI()
	for c.queue.notEmpty() {
		c.k.ReadyI(c.queue.fifoRemove(), MsgOK)
	}
}

// Broadcast wakes every waiter.
func (c *CondVar) Broadcast() {
	k := c.k
	k.Lock()
	c.BroadcastI()
	k.RescheduleS()
	k.Unlock()
}

// WaitS releases the last mutex locked by the running thread, waits for a
// signal and locks the mutex again before returning.
func (c *CondVar) WaitS() Msg {
	return c.WaitTimeoutS(Infinite)
}

// WaitTimeoutS is WaitS bounded by timeout. The mutex is locked again on
// every outcome, MsgTimeout included.
func (c *CondVar) WaitTimeoutS(timeout Interval) Msg {
	k := c.k
	k.checkClassS()
	ctp := k.current
	k.check(ctp.mtxlist != nil, "condition wait without a mutex")

	if timeout == Immediate {
		return MsgTimeout
	}

	m := ctp.mtxlist
	k.check(m.cnt == 1, "condition wait on a recursively locked mutex")
	m.UnlockS()

	c.queue.insert(ctp)
	msg := k.goSleepTimeoutS(StateWTCond, timeout)

	m.LockS()
	return msg
}

// Wait is WaitS taking the lock.
func (c *CondVar) Wait() Msg {
	c.k.Lock()
	msg := c.WaitTimeoutS(Infinite)
	c.k.Unlock()
	return msg
}

// WaitTimeout is WaitTimeoutS taking the lock.
func (c *CondVar) WaitTimeout(timeout Interval) Msg {
	c.k.Lock()
	msg := c.WaitTimeoutS(timeout)
	c.k.Unlock()
	return msg
}
