package kernel

// HaltInfo describes a fatal contract violation.
type HaltInfo struct {
	Thread ThreadID
	Name   string
	Reason string
	Stack  []byte
}

// Fault is the panic value raised when a kernel halts.
type Fault struct {
	Reason string
}

func (f *Fault) Error() string { return "kernel: halted: " + f.Reason }

// Logger writes newline-delimited log lines. hal.Logger satisfies it.
type Logger interface {
	WriteLineString(s string)
}

// SetHaltHandler installs the handler invoked on the first halt of k.
//
// The handler runs at most once. It must not call back into the kernel.
func (k *Kernel) SetHaltHandler(fn func(HaltInfo)) {
	k.haltHandler = fn
}

// Halted returns the reason of the first halt, or "".
func (k *Kernel) Halted() string {
	return k.haltReason
}

// Halt stops the kernel: the halt handler runs once and the caller panics
// with a *Fault.
func (k *Kernel) Halt(reason string) {
	k.haltOnce.Do(func() {
		k.haltReason = reason
		info := HaltInfo{Reason: reason, Stack: captureStack()}
		if tp := k.current; tp != nil {
			info.Thread = tp.id
			info.Name = tp.name
		}
		if k.cfg.Logger != nil {
			k.cfg.Logger.WriteLineString("kernel: halt: " + reason + " (thread " + info.Name + ")")
		}
		if k.haltHandler != nil {
			k.haltHandler(info)
		}
	})
	panic(&Fault{Reason: reason})
}

// check halts when cond is false and debug checks are enabled.
func (k *Kernel) check(cond bool, reason string) {
	if k.cfg.Debug && !cond {
		k.Halt(reason)
	}
}
