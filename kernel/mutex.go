package kernel

// Mutex is a mutual exclusion lock with priority inheritance. Waiters are
// served in arrival order. A thread must release its mutexes in the
// reverse of the order it locked them.
type Mutex struct {
	k     *Kernel
	queue threadsQueue
	owner *Thread
	// next is the mutex locked before this one by the same owner.
	next *Mutex
	cnt  int
}

// NewMutex returns an unlocked mutex of k.
func NewMutex(k *Kernel) *Mutex {
	m := &Mutex{}
	m.Init(k)
	return m
}

// Init binds m to k, unlocked.
func (m *Mutex) Init(k *Kernel) {
	m.k = k
	m.queue.init()
	m.owner = nil
	m.next = nil
	m.cnt = 0
}

// Owner returns the owning thread, or nil.
func (m *Mutex) Owner() *Thread { return m.owner }

func (m *Mutex) acquireI(tp *Thread) {
	m.owner = tp
	m.cnt = 1
	m.next = tp.mtxlist
	tp.mtxlist = m
}

// inheritI raises the priority of the ownership chain starting at tp up to
// prio. The walk stops at the first thread already at least that urgent.
// A chain longer than the thread count is a cycle, which is a deadlock.
func (k *Kernel) inheritI(tp *Thread, prio Priority) {
	for steps := 0; tp.prio < prio; steps++ {
		k.check(steps <= k.nthreads, "mutex ownership cycle")
		tp.prio = prio

		switch tp.state {
		case StateWTMutex:
			// Blocked on another mutex: boost its owner in turn.
			tp = tp.wtmtx.owner
			continue
		case StateReady:
			// Move it to its new place in the ready list.
			dequeue(tp)
			tp.state = StateCurrent
			k.readyI(tp)
		}
		return
	}
}

// LockS locks m, sleeping while another thread owns it.
func (m *Mutex) LockS() {
	k := m.k
	k.checkClassS()
	ctp := k.current

	if m.owner == nil {
		m.acquireI(ctp)
		return
	}
	if m.owner == ctp {
		k.check(k.cfg.RecursiveMutexes, "mutex already owned")
		m.cnt++
		return
	}

	k.inheritI(m.owner, ctp.prio)

	ctp.wtmtx = m
	m.queue.insert(ctp)
	k.goSleepS(StateWTMutex)

	// The unlocker transferred ownership before readying us.
	k.check(m.owner == ctp, "not owner")
	k.check(ctp.mtxlist == m, "not owned")
}

// Lock is LockS taking the lock.
func (m *Mutex) Lock() {
	m.k.Lock()
	m.LockS()
	m.k.Unlock()
}

// TryLockS locks m if it is free and reports whether it did.
func (m *Mutex) TryLockS() bool {
	k := m.k
	k.checkClassS()
	ctp := k.current

	if m.owner == nil {
		m.acquireI(ctp)
		return true
	}
	if m.owner == ctp && k.cfg.RecursiveMutexes {
		m.cnt++
		return true
	}
	return false
}

// TryLock is TryLockS taking the lock.
func (m *Mutex) TryLock() bool {
	m.k.Lock()
	ok := m.TryLockS()
	m.k.Unlock()
	return ok
}

// restorePriorityI sets the priority of tp to the greater of its base
// priority and the most urgent waiter on any mutex it still owns.
func restorePriorityI(tp *Thread) {
	prio := tp.realPrio
	for lmp := tp.mtxlist; lmp != nil; lmp = lmp.next {
		if p := lmp.queue.maxPrio(); p > prio {
			prio = p
		}
	}
	tp.prio = prio
}

// UnlockS releases m without rescheduling. Ownership passes to the oldest
// waiter, which is made ready.
func (m *Mutex) UnlockS() {
	k := m.k
	k.checkClassS()
	ctp := k.current

	k.check(ctp.mtxlist != nil, "owned mutexes list empty")
	k.check(m.owner == ctp, "ownership failure")
	k.check(ctp.mtxlist == m, "not next in list")

	m.cnt--
	if m.cnt > 0 {
		return
	}

	ctp.mtxlist = m.next
	m.next = nil
	restorePriorityI(ctp)

	if m.queue.isEmpty() {
		m.owner = nil
		return
	}
	m.handoffI()
}

// handoffI passes m to its oldest waiter and readies it. The new owner
// inherits the priority of the waiters still queued behind it.
func (m *Mutex) handoffI() {
	tp := m.queue.fifoRemove()
	tp.wtmtx = nil
	m.acquireI(tp)
	if p := m.queue.maxPrio(); p > tp.prio {
		tp.prio = p
	}
	m.k.ReadyI(tp, MsgOK)
}

// Unlock releases m and switches to a more urgent ready thread if the
// release made one.
func (m *Mutex) Unlock() {
	k := m.k
	k.Lock()
	m.UnlockS()
	k.RescheduleS()
	k.Unlock()
}

// GetNextMutexS returns the mutex the running thread must release next, or
// nil.
func (k *Kernel) GetNextMutexS() *Mutex {
	k.checkClassS()
	return k.current.mtxlist
}

// UnlockAll releases every mutex of the running thread and drops its
// priority back to the base one.
func (k *Kernel) UnlockAll() {
	k.Lock()
	ctp := k.current
	for ctp.mtxlist != nil {
		m := ctp.mtxlist
		ctp.mtxlist = m.next
		m.next = nil
		if m.queue.isEmpty() {
			m.owner = nil
			m.cnt = 0
			continue
		}
		m.handoffI()
	}
	ctp.prio = ctp.realPrio
	k.RescheduleS()
	k.Unlock()
}
