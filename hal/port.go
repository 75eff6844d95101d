package hal

import (
	"errors"
	"runtime"

	"ember/kernel"
)

// ErrDeadlock is the panic value of a simulated CPU that went idle with no
// alarm armed: no thread can ever run again.
var ErrDeadlock = errors.New("hal: deadlock: idle with no alarm armed")

// Port is a kernel port plus the controls a host needs to drive a simulated
// CPU.
type Port interface {
	kernel.Port

	// Advance consumes n ticks of CPU time in the running thread. Alarms
	// falling due meanwhile interrupt it at their exact time. From
	// interrupt context it only moves the clock, which models an overrun.
	Advance(n kernel.Interval)
	// Interrupt runs body as an interrupt taken at the current instruction
	// of the running thread, followed by the preemption epilogue.
	Interrupt(body func())
	// Close releases every parked thread goroutine.
	Close()
}

// PortConfig configures a SimPort.
type PortConfig struct {
	// Start is the initial system time.
	Start kernel.Time
}

// PortStats counts simulated CPU activity.
type PortStats struct {
	Switches  uint64
	Alarms    uint64
	IdleTicks uint64
}

// SimPort is a single-CPU kernel port on goroutines and a virtual clock.
//
// Every kernel thread is a goroutine holding a one-slot permit channel.
// Switch hands the permit to the incoming context and parks the caller, so
// exactly one goroutine runs kernel or thread code at any time. Time only
// moves when the idle thread waits for the alarm or a thread calls Advance.
type SimPort struct {
	h kernel.InterruptHandler

	now     kernel.Time
	alarmOn bool
	alarmAt kernel.Time
	armedAt kernel.Time
	isr     bool

	stats PortStats
	done  chan struct{}
}

type simContext struct {
	permit  chan struct{}
	entry   func()
	started bool
}

// NewSimPort returns a simulated port. Attach it to a kernel with
// kernel.New.
func NewSimPort(cfg PortConfig) *SimPort {
	return &SimPort{
		now:  cfg.Start,
		done: make(chan struct{}),
	}
}

func (p *SimPort) Now() kernel.Time { return p.now }

func (p *SimPort) StartAlarm(at kernel.Time) {
	p.alarmOn = true
	p.alarmAt = at
	p.armedAt = p.now
}

func (p *SimPort) SetAlarm(at kernel.Time) {
	p.alarmOn = true
	p.alarmAt = at
	p.armedAt = p.now
}

func (p *SimPort) StopAlarm() {
	p.alarmOn = false
}

// Alarm returns the programmed alarm time and whether it is armed.
func (p *SimPort) Alarm() (kernel.Time, bool) {
	return p.alarmAt, p.alarmOn
}

// Stats returns the activity counters.
func (p *SimPort) Stats() PortStats { return p.stats }

func (p *SimPort) Attach(h kernel.InterruptHandler) {
	p.h = h
}

func (p *SimPort) BootContext() kernel.Context {
	return &simContext{permit: make(chan struct{}, 1), started: true}
}

func (p *SimPort) NewContext(entry func()) kernel.Context {
	return &simContext{permit: make(chan struct{}, 1), entry: entry}
}

// resume gives the CPU to c, starting its goroutine on first dispatch.
func (p *SimPort) resume(c *simContext) {
	if !c.started {
		c.started = true
		go c.entry()
		return
	}
	c.permit <- struct{}{}
}

func (p *SimPort) park(c *simContext) {
	select {
	case <-c.permit:
	case <-p.done:
		runtime.Goexit()
	}
}

func (p *SimPort) Switch(from, to kernel.Context) {
	p.stats.Switches++
	f := from.(*simContext)
	p.resume(to.(*simContext))
	p.park(f)
}

func (p *SimPort) Exit(_, to kernel.Context) {
	p.stats.Switches++
	p.resume(to.(*simContext))
	runtime.Goexit()
}

// due reports whether the alarm time has been reached. The comparison is
// relative to the arming time so it survives the counter wrapping.
func (p *SimPort) due() bool {
	return p.alarmOn && kernel.TimeDiff(p.armedAt, p.now) >= kernel.TimeDiff(p.armedAt, p.alarmAt)
}

// fire serves the alarm for as long as it is due, then runs the epilogue.
func (p *SimPort) fire() {
	for p.due() {
		p.alarmOn = false
		p.stats.Alarms++
		p.isr = true
		p.h.AlarmInterrupt()
		p.isr = false
	}
	p.h.Preempt()
}

// Idle moves the clock to the alarm and serves it.
func (p *SimPort) Idle() {
	if !p.alarmOn {
		panic(ErrDeadlock)
	}
	if !p.due() {
		d := kernel.TimeDiff(p.now, p.alarmAt)
		p.stats.IdleTicks += uint64(d)
		p.now = p.alarmAt
	}
	p.fire()
}

func (p *SimPort) Advance(n kernel.Interval) {
	if p.isr {
		p.now = kernel.TimeAdd(p.now, n)
		return
	}

	start := p.now
	for {
		if p.due() {
			p.fire()
			continue
		}
		elapsed := kernel.TimeDiff(start, p.now)
		if elapsed >= n {
			return
		}
		remaining := n - elapsed
		if p.alarmOn {
			if d := kernel.TimeDiff(p.now, p.alarmAt); d <= remaining {
				p.now = p.alarmAt
				continue
			}
		}
		p.now = kernel.TimeAdd(p.now, remaining)
	}
}

func (p *SimPort) Interrupt(body func()) {
	p.isr = true
	p.h.ServeInterrupt(body)
	p.isr = false
	p.h.Preempt()
}

func (p *SimPort) Close() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}
