package kernel

// Lock enters the critical section from thread context. The section is not
// reentrant and must be left with Unlock by the same logical flow; a thread
// switch inside the section hands it over to the incoming thread.
func (k *Kernel) Lock() {
	k.check(!k.inISR, "Lock from interrupt context")
	k.check(!k.locked, "Lock while locked")
	k.locked = true
}

// Unlock leaves the critical section entered with Lock.
func (k *Kernel) Unlock() {
	k.check(!k.inISR, "Unlock from interrupt context")
	k.check(k.locked, "Unlock while not locked")
	k.locked = false
}

// LockFromISR enters the critical section from interrupt context.
func (k *Kernel) LockFromISR() {
	k.check(k.inISR, "LockFromISR outside interrupt context")
	k.check(!k.locked, "LockFromISR while locked")
	k.locked = true
}

// UnlockFromISR leaves the critical section entered with LockFromISR.
func (k *Kernel) UnlockFromISR() {
	k.check(k.inISR, "UnlockFromISR outside interrupt context")
	k.check(k.locked, "UnlockFromISR while not locked")
	k.locked = false
}

// IsLocked reports whether the critical section is held.
func (k *Kernel) IsLocked() bool { return k.locked }

// InISR reports whether the kernel is in interrupt context.
func (k *Kernel) InISR() bool { return k.inISR }

// checkClassI asserts the preconditions of an I-class function.
func (k *Kernel) checkClassI() {
	k.check(k.locked, "I-class call outside the critical section")
}

// checkClassS asserts the preconditions of an S-class function.
func (k *Kernel) checkClassS() {
	k.check(k.locked, "S-class call outside the critical section")
	k.check(!k.inISR, "S-class call from interrupt context")
}

func (k *Kernel) enterISR() {
	k.check(!k.inISR, "nested interrupt")
	k.check(!k.locked, "interrupt while locked")
	k.inISR = true
}

func (k *Kernel) exitISR() {
	k.check(!k.locked, "interrupt exit while locked")
	k.inISR = false
}

// AlarmInterrupt serves the alarm: it drains the due virtual timers.
func (k *Kernel) AlarmInterrupt() {
	k.enterISR()
	k.LockFromISR()
	k.vtDoTickI()
	k.UnlockFromISR()
	k.exitISR()
}

// ServeInterrupt runs body in interrupt context. Body may take LockFromISR
// and use the I-class API.
func (k *Kernel) ServeInterrupt(body func()) {
	k.enterISR()
	body()
	k.exitISR()
}

// Preempt is the interrupt epilogue: it switches to a more urgent ready
// thread, or to an equal one when the quantum expired.
func (k *Kernel) Preempt() {
	k.Lock()
	if k.IsRescheduleNeededI() {
		k.doPreemptionS()
	}
	k.Unlock()
}
