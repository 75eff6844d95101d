package kernel

// Context is a saved execution context. Only the port looks inside it.
type Context any

// Port is the platform layer underneath one kernel instance: the single
// hardware alarm, the system time counter and the context switch.
//
// The kernel calls Port methods only from kernel code paths, so a port never
// sees two concurrent calls.
type Port interface {
	// Now returns the system time.
	Now() Time

	// StartAlarm arms the alarm at an absolute time. The alarm was stopped.
	StartAlarm(at Time)
	// SetAlarm reprograms an alarm that is already armed.
	SetAlarm(at Time)
	// StopAlarm disarms the alarm.
	StopAlarm()

	// BootContext captures the context of the caller, which becomes the
	// main thread.
	BootContext() Context
	// NewContext prepares a context whose first dispatch runs entry. Entry
	// never returns.
	NewContext(entry func()) Context
	// Switch saves the running context into from and restores to. It returns
	// when some later Switch restores from again.
	Switch(from, to Context)
	// Exit restores to and discards from. It does not return.
	Exit(from, to Context)

	// Idle waits for the next interrupt. The idle thread calls it in a loop
	// outside the critical section.
	Idle()

	// Attach binds the interrupt entry points of a kernel to the port.
	Attach(h InterruptHandler)
}

// InterruptHandler is the interrupt-side surface a kernel exposes to its port.
type InterruptHandler interface {
	// AlarmInterrupt serves the alarm. It runs in interrupt context and
	// never switches threads.
	AlarmInterrupt()
	// ServeInterrupt runs body in interrupt context. Body may use the
	// I-class API under LockFromISR.
	ServeInterrupt(body func())
	// Preempt is the interrupt epilogue. The port calls it in thread context
	// after leaving interrupt context; it may switch threads.
	Preempt()
}
