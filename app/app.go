// Package app is the demo workload of the kernel: producers and a consumer
// on a mailbox, a periodic sampler, a priority-inheritance chain, an event
// driven reporter and a keyboard driver, all shown on the monitor.
package app

import (
	"errors"
	"fmt"

	"ember/hal"
	"ember/internal/buildinfo"
	"ember/internal/config"
	"ember/kernel"
	"ember/mem"
	"ember/monitor"
)

// ErrQuit is returned by Step once the escape key was handled.
var ErrQuit = errors.New("app: quit")

const (
	keysPriority     = kernel.NormalPriority + 30
	chainPriority    = kernel.NormalPriority + 10
	piPriority       = kernel.NormalPriority + 5
	samplerPriority  = kernel.NormalPriority + 4
	consumerPriority = kernel.NormalPriority + 3
	producerPriority = kernel.NormalPriority + 2
	reporterPriority = kernel.NormalPriority + 1
	monitorPriority  = kernel.NormalPriority - 10
)

const (
	producerStack = 2 * kernel.MinStackSize
	chainStack    = kernel.MinStackSize
	staticStack   = kernel.MinStackSize
)

// batchEvent is the event id the reporter listens on.
const batchEvent = 0

// Stats counts demo activity.
type Stats struct {
	Produced  uint64
	Consumed  uint64
	Dropped   uint64
	Resets    uint64
	Batches   uint64
	Samples   uint64
	MaxJitter kernel.Interval
	ChainRuns uint64
	MaxBoost  kernel.Priority
	Keys      uint64
}

// System is a booted kernel running the demo.
type System struct {
	h    hal.HAL
	port hal.Port
	cfg  config.Config
	k    *kernel.Kernel
	log  *teeLogger
	mon  *monitor.Monitor

	pool *mem.Pool
	heap *mem.Heap

	mbox    *kernel.Mailbox[uint32]
	keys    *kernel.Mailbox[hal.KeyEvent]
	batch   kernel.EventSource
	tick    kernel.Semaphore
	sampler kernel.VirtualTimer
	trigger kernel.ThreadRef
	due     kernel.Time

	pauseMu kernel.Mutex
	resumed kernel.CondVar
	paused  bool

	chainA, chainB kernel.Mutex

	statsMu kernel.Mutex
	stats   Stats

	producers []*kernel.Thread
	quit      bool
}

// New boots a kernel on the port of h and starts the demo threads. The
// calling goroutine becomes the main thread: Step and Shutdown must be
// called from it.
func New(h hal.HAL, cfg config.Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{h: h, port: h.Port(), cfg: cfg}
	s.log = &teeLogger{out: h.Logger()}

	opts := cfg.KernelOptions()
	opts.Logger = s.log
	s.k = kernel.New(s.port, opts)
	installHaltHandler(h, s.k)

	var fb hal.Framebuffer
	if d := h.Display(); d != nil {
		fb = d.Framebuffer()
	}
	s.mon = monitor.New(s.k, fb)
	s.log.mirror = s.mon.Console()

	k := s.k
	s.mbox = kernel.NewMailbox[uint32](k, cfg.Demo.MailboxSize)
	s.keys = kernel.NewMailbox[hal.KeyEvent](k, 8)
	s.batch.Init(k)
	s.tick.Init(k, 0)
	s.sampler.Init(k)
	s.pauseMu.Init(k)
	s.resumed.Init(k)
	s.chainA.Init(k)
	s.chainB.Init(k)
	s.statsMu.Init(k)
	s.pool = mem.NewPool(producerStack, cfg.Demo.Producers)
	s.heap = mem.NewHeap(3 * chainStack)

	s.logf("ember %s: %d producers, mailbox %d, period %d",
		buildinfo.Short(), cfg.Demo.Producers, cfg.Demo.MailboxSize, cfg.Demo.Period)

	s.startStatic("consumer", consumerPriority, s.consumer)
	s.startStatic("reporter", reporterPriority, s.reporter)
	s.startStatic("sampler", samplerPriority, s.sampleLoop)
	s.startStatic("pi", piPriority, s.chainLoop)
	s.startStatic("keys", keysPriority, s.keyLoop)
	if cfg.Demo.Refresh > 0 {
		s.startStatic("monitor", monitorPriority, s.monitorLoop)
	}
	for i := 0; i < cfg.Demo.Producers; i++ {
		tp, err := k.CreateFromPool(s.pool, fmt.Sprintf("prod%d", i), producerPriority, s.producer, i)
		if err != nil {
			return nil, fmt.Errorf("start producer %d: %w", i, err)
		}
		s.producers = append(s.producers, tp)
	}

	s.sampler.SetContinuous(kernel.Interval(cfg.Demo.Period), s.sample, nil)
	return s, nil
}

// Runner adapts New to the host runners. A boot error is returned by the
// first step.
func Runner(cfg config.Config) func(hal.HAL) func() error {
	return func(h hal.HAL) func() error {
		s, err := New(h, cfg)
		if err != nil {
			return func() error { return err }
		}
		return s.Step
	}
}

// Kernel returns the kernel the demo runs on.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// Monitor returns the kernel monitor.
func (s *System) Monitor() *monitor.Monitor { return s.mon }

// Step forwards pending key presses as interrupts and lets the system run
// for one tick. A kernel halt on the main thread is returned as an error.
func (s *System) Step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*kernel.Fault)
			if !ok {
				panic(r)
			}
			err = f
		}
	}()

	if in := s.h.Input(); in != nil {
		if kbd := in.Keyboard(); kbd != nil {
			s.drainKeys(kbd.Events())
		}
	}
	s.k.Sleep(1)
	if s.quit {
		return ErrQuit
	}
	return nil
}

func (s *System) drainKeys(ch <-chan hal.KeyEvent) {
	for {
		select {
		case ev := <-ch:
			s.Key(ev)
		default:
			return
		}
	}
}

// Key raises the keyboard interrupt for ev. Enter wakes the inheritance
// chain driver directly; other presses are queued for the key thread.
func (s *System) Key(ev hal.KeyEvent) {
	if !ev.Press {
		return
	}
	k := s.k
	s.port.Interrupt(func() {
		k.LockFromISR()
		if ev.Code == hal.KeyEnter {
			k.ResumeRefI(&s.trigger, kernel.MsgOK)
		} else {
			s.keys.PostI(ev)
		}
		k.UnlockFromISR()
	})
}

// Stats returns a snapshot of the counters.
func (s *System) Stats() Stats {
	s.statsMu.Lock()
	st := s.stats
	s.statsMu.Unlock()
	return st
}

// Shutdown stops the producers and waits for them, which returns their
// workspaces to the pool.
func (s *System) Shutdown() {
	for _, tp := range s.producers {
		s.k.Terminate(tp)
	}
	for _, tp := range s.producers {
		s.k.Wait(tp)
	}
	s.producers = nil
	s.sampler.Reset()
	s.logf("shutdown: %+v", s.Stats())
}

func (s *System) startStatic(name string, prio kernel.Priority, fn kernel.ThreadFunc) *kernel.Thread {
	return s.k.CreateStatic(kernel.NewWorkspace(staticStack), name, prio, fn, nil)
}

func (s *System) update(fn func(st *Stats)) {
	s.statsMu.Lock()
	fn(&s.stats)
	s.statsMu.Unlock()
}

func (s *System) logf(format string, args ...any) {
	s.log.WriteLineString(fmt.Sprintf(format, args...))
}

// teeLogger writes to the host log and mirrors on the monitor console.
type teeLogger struct {
	out    hal.Logger
	mirror hal.Logger
}

func (l *teeLogger) WriteLineString(s string) {
	if l.out != nil {
		l.out.WriteLineString(s)
	}
	if l.mirror != nil {
		l.mirror.WriteLineString(s)
	}
}

func (l *teeLogger) WriteLineBytes(b []byte) {
	l.WriteLineString(string(b))
}
