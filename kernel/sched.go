package kernel

// firstPrio returns the priority of the ready list head, NoPriority when
// the list is empty.
func (k *Kernel) firstPrio() Priority {
	return k.rlist.queue.next.owner.prio
}

// readyI inserts tp in the ready list behind every thread of greater or
// equal priority. It does not touch the running thread.
func (k *Kernel) readyI(tp *Thread) *Thread {
	k.checkClassI()
	k.check(tp.state != StateReady && tp.state != StateFinal, "invalid thread state for ready")

	tp.state = StateReady
	cp := k.rlist.queue.next
	for cp.owner.prio >= tp.prio {
		cp = cp.next
	}
	insertBefore(tp, cp)
	return tp
}

// readyAheadI inserts tp in the ready list ahead of its equal-priority
// peers. Used for a thread that was preempted before its quantum ran out.
func (k *Kernel) readyAheadI(tp *Thread) *Thread {
	k.checkClassI()
	k.check(tp.state != StateReady && tp.state != StateFinal, "invalid thread state for ready")

	tp.state = StateReady
	cp := k.rlist.queue.next
	for cp.owner.prio > tp.prio {
		cp = cp.next
	}
	insertBefore(tp, cp)
	return tp
}

// ReadyI makes tp ready with the given wakeup message. The caller must
// reschedule separately.
func (k *Kernel) ReadyI(tp *Thread, msg Msg) {
	k.readyI(tp).rdymsg = msg
}

// popReady removes the ready list head. The idle thread guarantees the list
// is never empty when a thread leaves the running state.
func (k *Kernel) popReady() *Thread {
	l := k.rlist.queue.next
	k.check(l != &k.rlist.queue, "ready list empty")
	return dequeue(l.owner)
}

// switchTo makes ntp the running thread and transfers the CPU from otp.
// The critical section travels with the CPU.
func (k *Kernel) switchTo(ntp, otp *Thread) {
	ntp.state = StateCurrent
	k.current = ntp
	k.restartQuantumI(ntp)
	k.trace.record(k.port.Now(), otp, ntp)

	if otp.state == StateFinal {
		k.port.Exit(otp.ctx, ntp.ctx)
		k.Halt("port returned to a terminated thread")
	}
	k.port.Switch(otp.ctx, ntp.ctx)
}

// goSleepS puts the running thread in newstate and runs the ready list
// head. It returns when the thread is made ready and dispatched again.
func (k *Kernel) goSleepS(newstate ThreadState) {
	k.checkClassS()
	otp := k.current
	otp.state = newstate
	k.switchTo(k.popReady(), otp)
}

// goSleepTimeoutS is goSleepS bounded by timeout. It returns the wakeup
// message, MsgTimeout if the timeout fired first. Immediate is not allowed.
func (k *Kernel) goSleepTimeoutS(newstate ThreadState, timeout Interval) Msg {
	k.checkClassS()
	k.check(timeout != Immediate, "immediate timeout on a sleeping call")

	tp := k.current
	if timeout != Infinite {
		k.vtSetI(&tp.timeout, timeout, k.wakeupFn, tp)
		k.goSleepS(newstate)
		if k.vtIsArmedI(&tp.timeout) {
			k.vtResetI(&tp.timeout)
		}
	} else {
		k.goSleepS(newstate)
	}
	return tp.rdymsg
}

// wakeupOnTimeout is the timeout callback of goSleepTimeoutS. It runs in
// interrupt context with the lock released.
func (k *Kernel) wakeupOnTimeout(arg any) {
	tp := arg.(*Thread)

	k.LockFromISR()
	switch tp.state {
	case StateReady:
		// Woken up already; the wakeup message stays.
		k.UnlockFromISR()
		return
	case StateWTResume:
		if tp.wtref != nil {
			tp.wtref.tp = nil
			tp.wtref = nil
		}
	case StateWTSem:
		tp.wtsem.cnt++
		dequeue(tp)
	case StateWTCond, StateWTExit:
		dequeue(tp)
	case StateSleeping, StateWTOrEvt, StateWTAndEvt:
	default:
		k.Halt("unexpected state in timeout wakeup: " + tp.state.String())
	}
	tp.rdymsg = MsgTimeout
	k.readyI(tp)
	k.UnlockFromISR()
}

// WakeupS readies ntp with msg and, if it is more urgent than the running
// thread, switches to it immediately.
func (k *Kernel) WakeupS(ntp *Thread, msg Msg) {
	k.checkClassS()

	ntp.rdymsg = msg
	otp := k.current
	if ntp.prio <= otp.prio {
		k.readyI(ntp)
		return
	}
	k.readyAheadI(otp)
	k.switchTo(ntp, otp)
}

// RescheduleS switches to the ready list head if it is strictly more urgent
// than the running thread.
func (k *Kernel) RescheduleS() {
	k.checkClassS()
	if k.firstPrio() > k.current.prio {
		k.doRescheduleAheadS()
	}
}

// IsRescheduleNeededI reports whether an interrupt epilogue should switch
// threads. Before the quantum expires only a strictly more urgent thread
// qualifies; after, an equal one does too.
func (k *Kernel) IsRescheduleNeededI() bool {
	k.checkClassI()
	p1 := k.firstPrio()
	p2 := k.current.prio
	if !k.quantumExpired {
		return p1 > p2
	}
	return p1 >= p2
}

// doRescheduleAheadS switches to the ready list head, putting the running
// thread back ahead of its equal-priority peers.
func (k *Kernel) doRescheduleAheadS() {
	otp := k.current
	ntp := k.popReady()
	k.readyAheadI(otp)
	k.switchTo(ntp, otp)
}

// doRescheduleBehindS switches to the ready list head, putting the running
// thread back behind its equal-priority peers.
func (k *Kernel) doRescheduleBehindS() {
	otp := k.current
	ntp := k.popReady()
	k.readyI(otp)
	k.switchTo(ntp, otp)
}

// doPreemptionS is the epilogue switch: a thread whose quantum expired goes
// behind its peers, otherwise ahead of them.
func (k *Kernel) doPreemptionS() {
	if k.quantumExpired {
		k.doRescheduleBehindS()
		return
	}
	k.doRescheduleAheadS()
}

// Yield passes the CPU to the next ready thread of equal priority, if any.
func (k *Kernel) Yield() {
	k.Lock()
	if k.firstPrio() >= k.current.prio {
		k.doRescheduleBehindS()
	}
	k.Unlock()
}

// restartQuantumI starts a fresh round-robin slice for tp.
func (k *Kernel) restartQuantumI(tp *Thread) {
	k.quantumExpired = false
	if k.cfg.TimeQuantum == 0 {
		return
	}
	if k.vtIsArmedI(&k.quantum) {
		k.vtResetI(&k.quantum)
	}
	if tp != k.idle {
		k.vtSetI(&k.quantum, k.cfg.TimeQuantum, k.quantumFn, nil)
	}
}

func (k *Kernel) expireQuantum(any) {
	k.LockFromISR()
	k.quantumExpired = true
	k.UnlockFromISR()
}
