package kernel

// fakePort is a clock and an alarm register. It cannot switch threads, so
// tests using it stay on the main thread and raise interrupts by hand.
type fakePort struct {
	now     Time
	alarmOn bool
	alarmAt Time
	starts  int
	sets    int
	stops   int
}

func (p *fakePort) Now() Time { return p.now }

func (p *fakePort) StartAlarm(at Time) {
	p.starts++
	p.alarmOn = true
	p.alarmAt = at
}

func (p *fakePort) SetAlarm(at Time) {
	p.sets++
	p.alarmOn = true
	p.alarmAt = at
}

func (p *fakePort) StopAlarm() {
	p.stops++
	p.alarmOn = false
}

func (p *fakePort) BootContext() Context            { return "main" }
func (p *fakePort) NewContext(entry func()) Context { return "thread" }
func (p *fakePort) Switch(from, to Context)         { panic("fake port cannot switch") }
func (p *fakePort) Exit(from, to Context)           { panic("fake port cannot switch") }
func (p *fakePort) Idle()                           { panic("fake port cannot idle") }
func (p *fakePort) Attach(h InterruptHandler)       {}

func newFakeKernel(cfg Config) (*Kernel, *fakePort) {
	cfg.Debug = true
	p := &fakePort{}
	return New(p, cfg), p
}

// tickAt moves the clock to t and serves the alarm interrupt.
func tickAt(k *Kernel, p *fakePort, t Time) {
	p.now = t
	k.AlarmInterrupt()
}

// expectHalt runs fn and reports the halt reason it caused, or "".
func expectHalt(fn func()) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*Fault)
			if !ok {
				panic(r)
			}
			reason = f.Reason
		}
	}()
	fn()
	return ""
}
