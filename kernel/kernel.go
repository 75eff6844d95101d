// Package kernel is a preemptive real-time kernel core: a priority
// scheduler, a delta-list virtual timer engine, a thread lifecycle manager
// and the blocking primitives built on them (semaphore, mutex, condition
// variable, event source, mailbox).
//
// A Kernel is one scheduler instance bound to one Port. Every kernel state
// mutation happens inside the critical section (Lock/Unlock in thread
// context, LockFromISR/UnlockFromISR in interrupt context).
//
// API naming follows the lock discipline:
//   - plain names (Wait, Signal, Post) take the lock themselves;
//   - the S suffix requires the lock held from thread context and may
//     reschedule;
//   - the I suffix requires the lock held from any context and never
//     reschedules.
package kernel

import "sync"

// Priority is a thread priority. Higher is more urgent.
type Priority uint8

const (
	// NoPriority sorts after every real priority. Only the ready list
	// sentinel uses it.
	NoPriority Priority = 0
	// IdlePriority is reserved for the idle thread.
	IdlePriority Priority = 1
	// LowPriority is the lowest priority for user threads.
	LowPriority Priority = 2
	// NormalPriority is the main thread's default priority.
	NormalPriority Priority = 128
	// HighPriority is the highest priority.
	HighPriority Priority = 255
)

// Config selects the kernel options.
type Config struct {
	// Debug enables the contract checks. A failed check halts the kernel.
	Debug bool

	// MainPriority is the priority of the thread that calls New.
	// Zero selects NormalPriority.
	MainPriority Priority

	// TimeQuantum is the round-robin slice in ticks. Zero disables
	// round-robin among equal priorities.
	TimeQuantum Interval

	// TimeDelta is the minimum safe distance in ticks between now and any
	// programmed alarm. Timer delays below it are raised to it.
	TimeDelta Interval

	// AlarmMaxInterval is the longest distance the alarm hardware can
	// represent. Zero means the full Interval range.
	AlarmMaxInterval Interval

	// TraceSize is the number of context switches kept in the trace buffer.
	TraceSize int

	// Dynamic enables CreateFromHeap, CreateFromPool and workspace
	// reclamation in Wait.
	Dynamic bool

	// RecursiveMutexes lets an owner lock a mutex again.
	RecursiveMutexes bool

	// IdleStackSize is the idle thread's stack size. Zero selects
	// MinStackSize.
	IdleStackSize int

	// Logger receives halt reports. Optional.
	Logger Logger
}

// Kernel is one scheduler instance.
type Kernel struct {
	cfg  Config
	port Port

	// rlist is the ready list sentinel; its priority is NoPriority.
	rlist   Thread
	current *Thread

	vtlist vtList

	locked bool
	inISR  bool

	mainWS Workspace
	idleWS *Workspace
	idle   *Thread

	registry link
	nthreads int
	nextID   ThreadID

	quantum        VirtualTimer
	quantumExpired bool

	trace traceBuffer

	wakeupFn  TimerFunc
	quantumFn TimerFunc

	haltOnce    sync.Once
	haltReason  string
	haltHandler func(HaltInfo)
}

// New creates a kernel on port. The calling goroutine becomes the main
// thread, running at cfg.MainPriority inside no critical section. New also
// creates the idle thread, which runs Port.Idle whenever nothing else is
// ready.
func New(port Port, cfg Config) *Kernel {
	if cfg.MainPriority == NoPriority {
		cfg.MainPriority = NormalPriority
	}
	if cfg.IdleStackSize < MinStackSize {
		cfg.IdleStackSize = MinStackSize
	}

	k := &Kernel{cfg: cfg, port: port}
	k.rlist.queue.owner = &k.rlist
	k.rlist.queue.next = &k.rlist.queue
	k.rlist.queue.prev = &k.rlist.queue
	k.rlist.prio = NoPriority
	k.registry.next = &k.registry
	k.registry.prev = &k.registry
	k.vtlist.init()
	k.trace.init(cfg.TraceSize)
	k.wakeupFn = k.wakeupOnTimeout
	k.quantumFn = k.expireQuantum

	k.locked = true
	mp := k.initThreadI(&k.mainWS, "main", cfg.MainPriority)
	mp.ctx = port.BootContext()
	mp.state = StateCurrent
	k.current = mp
	k.locked = false

	k.idleWS = NewWorkspace(cfg.IdleStackSize)
	k.idle = k.CreateStatic(k.idleWS, "idle", IdlePriority, k.idleLoop, nil)

	port.Attach(k)
	return k
}

// Port returns the port k runs on.
func (k *Kernel) Port() Port { return k.port }

// Config returns the options k was created with.
func (k *Kernel) Config() Config { return k.cfg }

// Now returns the system time.
func (k *Kernel) Now() Time { return k.port.Now() }

// Self returns the running thread.
func (k *Kernel) Self() *Thread { return k.current }

// Main returns the main thread.
func (k *Kernel) Main() *Thread { return &k.mainWS.tcb }

// Idle returns the idle thread.
func (k *Kernel) Idle() *Thread { return k.idle }

func (k *Kernel) idleLoop(any) Msg {
	for {
		k.port.Idle()
	}
}
