package kernel

// ThreadID identifies a thread for its whole life. IDs are never reused
// within a kernel.
type ThreadID uint32

// ThreadState is the scheduling state of a thread.
type ThreadState uint8

// Thread states. The WT states are blocked on the named object.
const (
	StateUninit    ThreadState = iota // not yet initialized
	StateReady                        // in the ready list
	StateCurrent                      // running
	StateSuspended                    // created but not started
	StateWTResume                     // suspended on a ThreadRef
	StateWTSem                        // waiting on a semaphore
	StateWTMutex                      // waiting on a mutex
	StateWTCond                       // waiting on a condition variable
	StateSleeping                     // sleeping for a time
	StateWTExit                       // waiting for another thread to exit
	StateWTOrEvt                      // waiting for any of some events
	StateWTAndEvt                     // waiting for all of some events
	StateFinal                        // exited
)

var stateNames = [...]string{
	StateUninit:    "uninit",
	StateReady:     "ready",
	StateCurrent:   "current",
	StateSuspended: "suspended",
	StateWTResume:  "wtresume",
	StateWTSem:     "wtsem",
	StateWTMutex:   "wtmutex",
	StateWTCond:    "wtcond",
	StateSleeping:  "sleeping",
	StateWTExit:    "wtexit",
	StateWTOrEvt:   "wtorevt",
	StateWTAndEvt:  "wtandevt",
	StateFinal:     "final",
}

func (s ThreadState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// Blocked reports whether s is one of the waiting states.
func (s ThreadState) Blocked() bool {
	return s >= StateSuspended && s < StateFinal
}

// MinStackSize is the smallest stack a Workspace may carry.
const MinStackSize = 256

// ThreadFunc is a thread body. Its return value is the exit code.
type ThreadFunc func(arg any) Msg

// Workspace is the memory of one thread: the control block and its stack.
// The kernel never allocates workspaces itself.
type Workspace struct {
	tcb   Thread
	Stack []byte
}

// NewWorkspace returns a workspace with a stack of size bytes.
func NewWorkspace(size int) *Workspace {
	return &Workspace{Stack: make([]byte, size)}
}

// Thread returns the control block living in ws.
func (ws *Workspace) Thread() *Thread { return &ws.tcb }

// Thread is a kernel thread control block.
type Thread struct {
	// queue links the thread in the ready list or in one wait queue.
	queue link
	// reg links the thread in the kernel registry.
	reg link

	k        *Kernel
	id       ThreadID
	name     string
	prio     Priority
	realPrio Priority
	state    ThreadState
	ctx      Context

	fn  ThreadFunc
	arg any

	terminate bool
	origin    Origin
	ws        *Workspace
	heap      Heap
	pool      Pool

	rdymsg   Msg
	exitCode Msg

	// Object the thread is blocked on, by state.
	wtsem  *Semaphore
	wtmtx  *Mutex
	wtref  *ThreadRef
	wtexit *Thread

	// waiting holds the threads blocked in Wait on this one.
	waiting   threadsQueue
	waiters   int
	reclaimed bool
	exitEvent EventSource

	epending EventMask
	ewmask   EventMask

	// mtxlist is the stack of owned mutexes, most recent first.
	mtxlist *Mutex

	timeout VirtualTimer
}

// ID returns the thread identifier.
func (tp *Thread) ID() ThreadID { return tp.id }

// Name returns the name given at creation.
func (tp *Thread) Name() string { return tp.name }

// Priority returns the current priority, inherited boosts included.
func (tp *Thread) Priority() Priority { return tp.prio }

// RealPriority returns the base priority, without inheritance.
func (tp *Thread) RealPriority() Priority { return tp.realPrio }

// State returns the scheduling state.
func (tp *Thread) State() ThreadState { return tp.state }

// Origin reports where the workspace came from.
func (tp *Thread) Origin() Origin { return tp.origin }

// Workspace returns the memory the thread lives in.
func (tp *Thread) Workspace() *Workspace { return tp.ws }

// ExitEvent is broadcast when the thread exits.
func (tp *Thread) ExitEvent() *EventSource { return &tp.exitEvent }

// PendingEvents returns the events signalled but not yet consumed.
func (tp *Thread) PendingEvents() EventMask { return tp.epending }

// initThreadI prepares the control block in ws. The thread is Suspended and
// registered but has no context yet.
func (k *Kernel) initThreadI(ws *Workspace, name string, prio Priority) *Thread {
	k.checkClassI()

	tp := &ws.tcb
	*tp = Thread{
		k:        k,
		id:       k.nextID,
		name:     name,
		prio:     prio,
		realPrio: prio,
		state:    StateSuspended,
		ws:       ws,
	}
	k.nextID++
	tp.queue.owner = tp
	tp.waiting.init()
	tp.exitEvent.Init(k)
	tp.timeout.Init(k)

	tp.reg.owner = tp
	tp.reg.next = &k.registry
	tp.reg.prev = k.registry.prev
	tp.reg.prev.next = &tp.reg
	k.registry.prev = &tp.reg
	k.nthreads++
	return tp
}

func (k *Kernel) unregisterI(tp *Thread) {
	if tp.reg.next == nil {
		return
	}
	tp.reg.prev.next = tp.reg.next
	tp.reg.next.prev = tp.reg.prev
	tp.reg.next, tp.reg.prev = nil, nil
	k.nthreads--
}

// threadEntry is the first code a new context runs. The switch that
// dispatched it handed over the critical section.
func (k *Kernel) threadEntry(tp *Thread) {
	k.Unlock()
	k.Exit(tp.fn(tp.arg))
}

// InitThread creates a Suspended thread in ws running fn(arg). Resume
// starts it.
func (k *Kernel) InitThread(ws *Workspace, name string, prio Priority, fn ThreadFunc, arg any) *Thread {
	k.Lock()
	tp := k.initThreadS(ws, name, prio, fn, arg)
	k.Unlock()
	return tp
}

func (k *Kernel) initThreadS(ws *Workspace, name string, prio Priority, fn ThreadFunc, arg any) *Thread {
	k.check(ws != nil && fn != nil, "invalid thread parameters")
	k.check(len(ws.Stack) >= MinStackSize, "workspace too small")
	k.check(prio != NoPriority, "invalid priority")
	k.check(ws.tcb.state == StateUninit || ws.tcb.state == StateFinal, "workspace in use")

	tp := k.initThreadI(ws, name, prio)
	tp.fn = fn
	tp.arg = arg
	tp.ctx = k.port.NewContext(func() { k.threadEntry(tp) })
	return tp
}

// CreateStatic creates and starts a thread in a caller-owned workspace.
func (k *Kernel) CreateStatic(ws *Workspace, name string, prio Priority, fn ThreadFunc, arg any) *Thread {
	k.Lock()
	tp := k.initThreadS(ws, name, prio, fn, arg)
	k.WakeupS(tp, MsgOK)
	k.Unlock()
	return tp
}

// CreateFromHeap allocates a workspace with size bytes of stack from heap
// and starts a thread in it. The workspace returns to heap when the last
// waiter of the thread leaves Wait.
func (k *Kernel) CreateFromHeap(heap Heap, size int, name string, prio Priority, fn ThreadFunc, arg any) (*Thread, error) {
	k.check(k.cfg.Dynamic, "dynamic threads disabled")
	ws := heap.Alloc(size)
	if ws == nil {
		return nil, ErrNoMemory
	}

	k.Lock()
	tp := k.initThreadS(ws, name, prio, fn, arg)
	tp.origin = OriginHeap
	tp.heap = heap
	k.WakeupS(tp, MsgOK)
	k.Unlock()
	return tp, nil
}

// CreateFromPool is CreateFromHeap for a fixed-size pool.
func (k *Kernel) CreateFromPool(pool Pool, name string, prio Priority, fn ThreadFunc, arg any) (*Thread, error) {
	k.check(k.cfg.Dynamic, "dynamic threads disabled")
	ws := pool.Alloc()
	if ws == nil {
		return nil, ErrNoMemory
	}

	k.Lock()
	tp := k.initThreadS(ws, name, prio, fn, arg)
	tp.origin = OriginPool
	tp.pool = pool
	k.WakeupS(tp, MsgOK)
	k.Unlock()
	return tp, nil
}

// Resume starts a Suspended thread.
func (k *Kernel) Resume(tp *Thread) *Thread {
	k.Lock()
	k.check(tp.state == StateSuspended, "resume of a thread not suspended")
	k.WakeupS(tp, MsgOK)
	k.Unlock()
	return tp
}

// Terminate asks tp to exit. The thread decides when by polling
// ShouldTerminate.
func (k *Kernel) Terminate(tp *Thread) {
	k.Lock()
	tp.terminate = true
	k.Unlock()
}

// ShouldTerminate reports whether the running thread was asked to exit.
func (k *Kernel) ShouldTerminate() bool {
	k.Lock()
	t := k.current.terminate
	k.Unlock()
	return t
}

// Exit terminates the running thread with code. It does not return.
func (k *Kernel) Exit(code Msg) {
	k.Lock()
	k.ExitS(code)
}

// ExitS is Exit with the lock already held.
func (k *Kernel) ExitS(code Msg) {
	k.checkClassS()
	tp := k.current
	k.check(tp != k.idle, "idle thread exit")
	k.check(tp != k.Main(), "main thread exit")
	k.check(tp.mtxlist == nil, "thread exit with mutexes held")

	tp.exitCode = code
	for tp.waiting.notEmpty() {
		k.ReadyI(tp.waiting.fifoRemove(), MsgOK)
	}
	tp.exitEvent.BroadcastFlagsI(0)

	// Dynamic threads stay registered until their memory is reclaimed.
	if tp.origin == OriginStatic {
		k.unregisterI(tp)
	}
	k.goSleepS(StateFinal)
}

// Wait blocks until tp exits and returns its exit code. The last waiter
// of a heap or pool thread frees its workspace; tp must not be used once
// every waiter has returned.
func (k *Kernel) Wait(tp *Thread) Msg {
	code, _ := k.WaitTimeout(tp, Infinite)
	return code
}

// WaitTimeout is Wait bounded by timeout. ok is false when tp had not
// exited by the time the waiter ran again.
func (k *Kernel) WaitTimeout(tp *Thread, timeout Interval) (code Msg, ok bool) {
	k.Lock()
	k.check(tp != nil && tp != k.current, "invalid wait target")
	k.check(!tp.reclaimed, "wait on a reclaimed thread")

	tp.waiters++
	if tp.state != StateFinal {
		if timeout == Immediate {
			tp.waiters--
			k.Unlock()
			return MsgTimeout, false
		}
		self := k.current
		self.wtexit = tp
		tp.waiting.insert(self)
		// A timeout served after tp exited counts as a completed wait.
		if k.goSleepTimeoutS(StateWTExit, timeout) == MsgTimeout && tp.state != StateFinal {
			tp.waiters--
			k.Unlock()
			return MsgTimeout, false
		}
	}

	code = tp.exitCode
	tp.waiters--
	last := tp.waiters == 0 && tp.origin != OriginStatic && k.cfg.Dynamic
	if last {
		tp.reclaimed = true
		k.unregisterI(tp)
	}
	k.Unlock()

	if last {
		switch tp.origin {
		case OriginHeap:
			tp.heap.Free(tp.ws)
		case OriginPool:
			tp.pool.Free(tp.ws)
		}
	}
	return code, true
}

// SetPriority changes the base priority of the running thread and returns
// the old one. An inherited priority is only ever raised here; unlock
// restores the rest.
func (k *Kernel) SetPriority(prio Priority) Priority {
	k.check(prio != NoPriority, "invalid priority")

	k.Lock()
	tp := k.current
	old := tp.realPrio
	if tp.prio == tp.realPrio || prio > tp.prio {
		tp.prio = prio
	}
	tp.realPrio = prio
	k.RescheduleS()
	k.Unlock()
	return old
}

// SleepS suspends the running thread for d ticks.
func (k *Kernel) SleepS(d Interval) {
	k.check(d != Immediate, "sleep of zero ticks")
	k.goSleepTimeoutS(StateSleeping, d)
}

// Sleep suspends the running thread for d ticks.
func (k *Kernel) Sleep(d Interval) {
	k.Lock()
	k.SleepS(d)
	k.Unlock()
}

// SleepUntil suspends the running thread until t. It returns at once when
// t is now.
func (k *Kernel) SleepUntil(t Time) {
	k.Lock()
	if d := TimeDiff(k.port.Now(), t); d > 0 {
		k.SleepS(d)
	}
	k.Unlock()
}

// SleepUntilWindowed sleeps until next unless the current time is already
// outside [prev, next). It returns next, the base of the following window.
func (k *Kernel) SleepUntilWindowed(prev, next Time) Time {
	k.Lock()
	now := k.port.Now()
	if IsTimeWithin(now, prev, next) {
		k.SleepS(TimeDiff(now, next))
	}
	k.Unlock()
	return next
}

// ThreadRef holds at most one thread suspended on it, so an interrupt can
// test and resume without a queue.
type ThreadRef struct {
	tp *Thread
}

// Thread returns the suspended thread, or nil.
func (r *ThreadRef) Thread() *Thread { return r.tp }

// SuspendRefS suspends the running thread on ref until ResumeRefI or
// ResumeRefS.
func (k *Kernel) SuspendRefS(ref *ThreadRef) Msg {
	return k.SuspendRefTimeoutS(ref, Infinite)
}

// SuspendRefTimeoutS is SuspendRefS bounded by timeout. ref is empty again
// when it returns.
func (k *Kernel) SuspendRefTimeoutS(ref *ThreadRef, timeout Interval) Msg {
	k.checkClassS()
	k.check(ref.tp == nil, "thread reference in use")

	if timeout == Immediate {
		return MsgTimeout
	}
	tp := k.current
	ref.tp = tp
	tp.wtref = ref
	return k.goSleepTimeoutS(StateWTResume, timeout)
}

// ResumeRefI readies the thread suspended on ref, if any, with msg.
func (k *Kernel) ResumeRefI(ref *ThreadRef, msg Msg) {
	k.checkClassI()
	if tp := ref.tp; tp != nil {
		k.check(tp.state == StateWTResume, "thread reference not suspended")
		ref.tp = nil
		tp.wtref = nil
		k.ReadyI(tp, msg)
	}
}

// ResumeRefS is ResumeRefI with an immediate reschedule.
func (k *Kernel) ResumeRefS(ref *ThreadRef, msg Msg) {
	k.checkClassS()
	if tp := ref.tp; tp != nil {
		k.check(tp.state == StateWTResume, "thread reference not suspended")
		ref.tp = nil
		tp.wtref = nil
		k.WakeupS(tp, msg)
	}
}

// ResumeRef takes the lock and resumes the thread suspended on ref.
func (k *Kernel) ResumeRef(ref *ThreadRef, msg Msg) {
	k.Lock()
	k.ResumeRefS(ref, msg)
	k.Unlock()
}
