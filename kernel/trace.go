package kernel

// TraceEvent records one context switch.
type TraceEvent struct {
	Time Time
	From ThreadID
	To   ThreadID
	// State is the state the outgoing thread switched into.
	State    ThreadState
	FromName string
	ToName   string
}

// traceBuffer is a ring of the most recent switches.
type traceBuffer struct {
	events []TraceEvent
	next   int
	total  uint64
}

func (b *traceBuffer) init(size int) {
	if size > 0 {
		b.events = make([]TraceEvent, size)
	}
}

func (b *traceBuffer) record(now Time, otp, ntp *Thread) {
	if len(b.events) == 0 {
		return
	}
	b.events[b.next] = TraceEvent{
		Time:     now,
		From:     otp.id,
		To:       ntp.id,
		State:    otp.state,
		FromName: otp.name,
		ToName:   ntp.name,
	}
	b.next++
	if b.next == len(b.events) {
		b.next = 0
	}
	b.total++
}

// snapshot returns the buffered events, oldest first.
func (b *traceBuffer) snapshot() []TraceEvent {
	n := len(b.events)
	if uint64(n) > b.total {
		n = int(b.total)
	}
	out := make([]TraceEvent, 0, n)
	start := b.next - n
	if start < 0 {
		start += len(b.events)
	}
	for i := 0; i < n; i++ {
		out = append(out, b.events[(start+i)%len(b.events)])
	}
	return out
}

// TraceI returns the recorded switches, oldest first, and the number of
// switches since boot.
func (k *Kernel) TraceI() ([]TraceEvent, uint64) {
	k.checkClassI()
	return k.trace.snapshot(), k.trace.total
}

// Trace is TraceI taking the lock.
func (k *Kernel) Trace() ([]TraceEvent, uint64) {
	k.Lock()
	ev, total := k.TraceI()
	k.Unlock()
	return ev, total
}
