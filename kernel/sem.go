package kernel

// Semaphore is a counting semaphore with a FIFO wait queue. A negative
// counter is minus the number of queued threads.
type Semaphore struct {
	k     *Kernel
	queue threadsQueue
	cnt   int32
}

// NewSemaphore returns a semaphore of k with counter n.
func NewSemaphore(k *Kernel, n int32) *Semaphore {
	s := &Semaphore{}
	s.Init(k, n)
	return s
}

// Init binds s to k with counter n, which must not be negative.
func (s *Semaphore) Init(k *Kernel, n int32) {
	k.check(n >= 0, "negative semaphore counter")
	s.k = k
	s.queue.init()
	s.cnt = n
}

// ResetI sets the counter to n and readies every waiter with MsgReset, in
// arrival order.
func (s *Semaphore) ResetI(n int32) {
	k := s.k
	k.checkClassI()
	k.check(n >= 0, "negative semaphore counter")

	s.cnt = n
	for s.queue.notEmpty() {
		k.ReadyI(s.queue.fifoRemove(), MsgReset)
	}
}

// ResetS is ResetI followed by a reschedule.
func (s *Semaphore) ResetS(n int32) {
	s.ResetI(n)
	s.k.RescheduleS()
}

// Reset is ResetS taking the lock.
func (s *Semaphore) Reset(n int32) {
	s.k.Lock()
	s.ResetS(n)
	s.k.Unlock()
}

// WaitS takes one unit, sleeping while none is available.
func (s *Semaphore) WaitS() Msg {
	return s.WaitTimeoutS(Infinite)
}

// WaitTimeoutS takes one unit, sleeping at most timeout ticks. It returns
// MsgOK, MsgReset or MsgTimeout.
func (s *Semaphore) WaitTimeoutS(timeout Interval) Msg {
	k := s.k
	k.checkClassS()
	k.check(s.cnt >= 0 || s.queue.notEmpty(), "inconsistent semaphore")

	s.cnt--
	if s.cnt >= 0 {
		return MsgOK
	}
	if timeout == Immediate {
		s.cnt++
		return MsgTimeout
	}
	tp := k.current
	tp.wtsem = s
	s.queue.insert(tp)
	return k.goSleepTimeoutS(StateWTSem, timeout)
}

// Wait is WaitS taking the lock.
func (s *Semaphore) Wait() Msg {
	s.k.Lock()
	msg := s.WaitTimeoutS(Infinite)
	s.k.Unlock()
	return msg
}

// WaitTimeout is WaitTimeoutS taking the lock.
func (s *Semaphore) WaitTimeout(timeout Interval) Msg {
	s.k.Lock()
	msg := s.WaitTimeoutS(timeout)
	s.k.Unlock()
	return msg
}

// SignalI releases one unit, readying the oldest waiter if any.
func (s *Semaphore) SignalI() {
	k := s.k
	k.checkClassI()
	k.check(s.cnt >= 0 || s.queue.notEmpty(), "inconsistent semaphore")

	s.cnt++
	if s.cnt <= 0 {
		k.ReadyI(s.queue.fifoRemove(), MsgOK)
	}
}

// SignalS is SignalI that switches at once to a more urgent waiter.
func (s *Semaphore) SignalS() {
	k := s.k
	k.checkClassS()
	k.check(s.cnt >= 0 || s.queue.notEmpty(), "inconsistent semaphore")

	s.cnt++
	if s.cnt <= 0 {
		k.WakeupS(s.queue.fifoRemove(), MsgOK)
	}
}

// Signal is SignalS taking the lock.
func (s *Semaphore) Signal() {
	s.k.Lock()
	s.SignalS()
	s.k.Unlock()
}

// AddCounterI releases n units at once.
func (s *Semaphore) AddCounterI(n int32) {
	k := s.k
	k.checkClassI()
	k.check(n > 0, "invalid counter increment")

	for ; n > 0; n-- {
		s.cnt++
		if s.cnt <= 0 {
			k.ReadyI(s.queue.fifoRemove(), MsgOK)
		}
	}
}

// GetCounterI returns the counter.
func (s *Semaphore) GetCounterI() int32 {
	s.k.checkClassI()
	return s.cnt
}

// SignalWait atomically signals sps and waits on spw.
func SignalWait(sps, spw *Semaphore) Msg {
	k := sps.k
	k.check(spw.k == k, "semaphores of different kernels")

	k.Lock()
	k.check(sps.cnt >= 0 || sps.queue.notEmpty(), "inconsistent semaphore")
	k.check(spw.cnt >= 0 || spw.queue.notEmpty(), "inconsistent semaphore")

	sps.cnt++
	if sps.cnt <= 0 {
		k.ReadyI(sps.queue.fifoRemove(), MsgOK)
	}

	var msg Msg
	spw.cnt--
	if spw.cnt < 0 {
		tp := k.current
		tp.wtsem = spw
		spw.queue.insert(tp)
		k.goSleepS(StateWTSem)
		msg = tp.rdymsg
	} else {
		k.RescheduleS()
		msg = MsgOK
	}
	k.Unlock()
	return msg
}
