package kernel

// TimerFunc is a virtual timer callback. It runs in interrupt context with
// the critical section released; it must take LockFromISR before touching
// kernel state and must not block.
type TimerFunc func(arg any)

// deltaLink is a node of the virtual timers delta list. delta is the
// distance in ticks from the previous node's deadline.
type deltaLink struct {
	next  *deltaLink
	prev  *deltaLink
	delta Interval
	vt    *VirtualTimer
}

// VirtualTimer is a one-shot or continuous software timer. The owner keeps
// the storage alive while the timer is armed; the list never owns it.
type VirtualTimer struct {
	k      *Kernel
	dl     deltaLink
	fn     TimerFunc
	arg    any
	last   Time
	reload Interval
}

// vtList is the delta list of armed timers. The header delta is Infinite,
// larger than any real delta, so scans stop on it by comparison alone.
// The sum of deltas from the head to a timer is that timer's deadline minus
// lasttime.
type vtList struct {
	dlist     deltaLink
	lasttime  Time
	laststamp uint64
}

func (l *vtList) init() {
	l.dlist.next = &l.dlist
	l.dlist.prev = &l.dlist
	l.dlist.delta = Infinite
}

func (l *vtList) isEmpty() bool {
	return l.dlist.next == &l.dlist
}

// clampAlarm limits an alarm distance to what the hardware can program.
func (k *Kernel) clampAlarm(d Interval) Interval {
	if k.cfg.AlarmMaxInterval != 0 && d > k.cfg.AlarmMaxInterval {
		return k.cfg.AlarmMaxInterval
	}
	return d
}

// vtCompress moves lasttime forward by deltanow, consuming that amount from
// the head of the list. Heads already due end up with a zero delta.
func (k *Kernel) vtCompress(deltanow Interval) {
	l := &k.vtlist
	dlp := l.dlist.next

	l.lasttime = TimeAdd(l.lasttime, deltanow)
	for dlp.delta < deltanow {
		deltanow -= dlp.delta
		dlp.delta = 0
		dlp = dlp.next
	}
	if dlp != &l.dlist {
		k.check(deltanow <= dlp.delta, "invalid delta")
		dlp.delta -= deltanow
	}
}

// vtEnqueue links vtp so that it fires delay ticks after now.
func (k *Kernel) vtEnqueue(vtp *VirtualTimer, now Time, delay Interval) {
	l := &k.vtlist
	vtp.dl.vt = vtp

	if delay < k.cfg.TimeDelta {
		delay = k.cfg.TimeDelta
	}

	if l.isEmpty() {
		l.lasttime = now
		vtp.dl.next = &l.dlist
		vtp.dl.prev = &l.dlist
		l.dlist.next = &vtp.dl
		l.dlist.prev = &vtp.dl
		vtp.dl.delta = delay
		k.port.StartAlarm(TimeAdd(l.lasttime, k.clampAlarm(delay)))
		return
	}

	// The delay as a delta from lasttime. A huge delay can overflow, in
	// which case the list is compressed to the current time first.
	deltanow := TimeDiff(l.lasttime, now)
	delta := deltanow + delay
	if delta < deltanow {
		k.vtCompress(deltanow)
		delta = delay
	}

	if delta < l.dlist.next.delta {
		k.port.SetAlarm(TimeAdd(l.lasttime, k.clampAlarm(delta)))
	}

	dlp := l.dlist.next
	for dlp.delta < delta {
		k.check(dlp != &vtp.dl, "timer already armed")
		delta -= dlp.delta
		dlp = dlp.next
	}

	vtp.dl.next = dlp
	vtp.dl.prev = dlp.prev
	vtp.dl.prev.next = &vtp.dl
	dlp.prev = &vtp.dl
	vtp.dl.delta = delta
	dlp.delta -= delta

	// Inserting last wrote into the header.
	l.dlist.delta = Infinite
}

func (k *Kernel) vtIsArmedI(vtp *VirtualTimer) bool {
	return vtp.dl.next != nil
}

func (k *Kernel) vtSetI(vtp *VirtualTimer, delay Interval, fn TimerFunc, arg any) {
	k.checkClassI()
	k.check(fn != nil && delay != Immediate, "invalid timer parameters")
	k.check(!k.vtIsArmedI(vtp), "timer already armed")

	now := k.port.Now()
	vtp.k = k
	vtp.fn = fn
	vtp.arg = arg
	vtp.last = now
	vtp.reload = 0
	k.vtEnqueue(vtp, now, delay)
}

func (k *Kernel) vtSetContinuousI(vtp *VirtualTimer, delay Interval, fn TimerFunc, arg any) {
	k.checkClassI()
	k.check(fn != nil && delay != Immediate, "invalid timer parameters")
	k.check(!k.vtIsArmedI(vtp), "timer already armed")

	now := k.port.Now()
	vtp.k = k
	vtp.fn = fn
	vtp.arg = arg
	vtp.last = now
	vtp.reload = delay
	k.vtEnqueue(vtp, now, delay)
}

// vtResetI unlinks an armed timer. Its delta goes to the following timer so
// every later deadline is unchanged.
func (k *Kernel) vtResetI(vtp *VirtualTimer) {
	k.checkClassI()
	k.check(k.vtIsArmedI(vtp), "timer not armed")

	l := &k.vtlist

	if l.dlist.next != &vtp.dl {
		vtp.dl.prev.next = vtp.dl.next
		vtp.dl.next.prev = vtp.dl.prev
		if vtp.dl.next != &l.dlist {
			vtp.dl.next.delta += vtp.dl.delta
		}
		vtp.dl.next, vtp.dl.prev = nil, nil
		return
	}

	l.dlist.next = vtp.dl.next
	l.dlist.next.prev = &l.dlist
	vtp.dl.next, vtp.dl.prev = nil, nil

	if l.isEmpty() {
		k.port.StopAlarm()
		return
	}

	l.dlist.next.delta += vtp.dl.delta

	// Already past the new head's deadline: the pending alarm serves it.
	nowdelta := TimeDiff(l.lasttime, k.port.Now())
	if nowdelta >= l.dlist.next.delta {
		return
	}

	remaining := l.dlist.next.delta - nowdelta
	if remaining < k.cfg.TimeDelta {
		remaining = k.cfg.TimeDelta
	} else {
		remaining = k.clampAlarm(remaining)
	}
	k.port.SetAlarm(TimeAdd(l.lasttime, nowdelta+remaining))
}

// vtDoTickI fires every due timer in deadline order, then reprograms the
// alarm for the new head. Only the alarm interrupt calls it.
func (k *Kernel) vtDoTickI() {
	k.checkClassI()
	l := &k.vtlist

	now := k.port.Now()
	nowdelta := TimeDiff(l.lasttime, now)

	dlp := l.dlist.next
	for nowdelta >= dlp.delta {
		vtp := dlp.vt

		l.lasttime = TimeAdd(l.lasttime, dlp.delta)
		vtp.last = l.lasttime
		k.check(TimeDiff(l.lasttime, now) <= nowdelta, "back in time")

		dlp.next.prev = &l.dlist
		l.dlist.next = dlp.next
		dlp.next, dlp.prev = nil, nil

		if l.isEmpty() {
			k.port.StopAlarm()
		}

		// The callback may arm or reset timers, lasttime included.
		k.UnlockFromISR()
		vtp.fn(vtp.arg)
		k.LockFromISR()

		now = k.port.Now()
		nowdelta = TimeDiff(l.lasttime, now)

		if vtp.reload > 0 && !k.vtIsArmedI(vtp) {
			// Rearm relative to now minus the overrun so deadlines do not
			// drift.
			skipped := TimeDiff(vtp.last, now)
			k.check(skipped <= vtp.reload, "skipped deadline")
			k.vtEnqueue(vtp, now, vtp.reload-skipped)
			nowdelta = TimeDiff(l.lasttime, now)
		}

		dlp = l.dlist.next
	}

	if l.isEmpty() {
		return
	}

	delta := dlp.delta - nowdelta
	if delta < k.cfg.TimeDelta {
		delta = k.cfg.TimeDelta
	} else {
		delta = k.clampAlarm(delta)
	}
	k.port.SetAlarm(TimeAdd(now, delta))
}

// Init binds vt to k. A timer must be initialized before first use.
func (vt *VirtualTimer) Init(k *Kernel) {
	*vt = VirtualTimer{k: k}
}

// SetI arms vt as a one-shot timer firing fn(arg) after delay ticks.
// Immediate is not a valid delay; Infinite is just a long one.
func (vt *VirtualTimer) SetI(delay Interval, fn TimerFunc, arg any) {
	vt.k.vtSetI(vt, delay, fn, arg)
}

// SetContinuousI arms vt as a periodic timer with period delay.
func (vt *VirtualTimer) SetContinuousI(delay Interval, fn TimerFunc, arg any) {
	vt.k.vtSetContinuousI(vt, delay, fn, arg)
}

// ResetI disarms an armed timer.
func (vt *VirtualTimer) ResetI() {
	vt.k.vtResetI(vt)
}

// IsArmedI reports whether vt is in the delta list.
func (vt *VirtualTimer) IsArmedI() bool {
	return vt.k.vtIsArmedI(vt)
}

// Set arms vt as a one-shot timer, disarming it first if needed.
func (vt *VirtualTimer) Set(delay Interval, fn TimerFunc, arg any) {
	k := vt.k
	k.Lock()
	if k.vtIsArmedI(vt) {
		k.vtResetI(vt)
	}
	k.vtSetI(vt, delay, fn, arg)
	k.Unlock()
}

// SetContinuous arms vt as a periodic timer, disarming it first if needed.
func (vt *VirtualTimer) SetContinuous(delay Interval, fn TimerFunc, arg any) {
	k := vt.k
	k.Lock()
	if k.vtIsArmedI(vt) {
		k.vtResetI(vt)
	}
	k.vtSetContinuousI(vt, delay, fn, arg)
	k.Unlock()
}

// Reset disarms vt if armed.
func (vt *VirtualTimer) Reset() {
	k := vt.k
	k.Lock()
	if k.vtIsArmedI(vt) {
		k.vtResetI(vt)
	}
	k.Unlock()
}

// IsArmed reports whether vt is armed.
func (vt *VirtualTimer) IsArmed() bool {
	k := vt.k
	k.Lock()
	armed := k.vtIsArmedI(vt)
	k.Unlock()
	return armed
}

// GetRemainingI returns the ticks until vt fires, zero if it is due.
func (vt *VirtualTimer) GetRemainingI() Interval {
	k := vt.k
	k.checkClassI()
	k.check(k.vtIsArmedI(vt), "timer not armed")

	l := &k.vtlist
	var delta Interval
	for dlp := l.dlist.next; ; dlp = dlp.next {
		delta += dlp.delta
		if dlp == &vt.dl {
			break
		}
	}
	nowdelta := TimeDiff(l.lasttime, k.port.Now())
	if nowdelta >= delta {
		return 0
	}
	return delta - nowdelta
}

// Reload returns the period of a continuous timer, zero for one-shot.
func (vt *VirtualTimer) Reload() Interval { return vt.reload }

// Last returns the time vt was armed, or its last deadline once it fired.
func (vt *VirtualTimer) Last() Time { return vt.last }

// TimerDeadlinesI returns the absolute deadlines of the armed timers in
// list order.
func (k *Kernel) TimerDeadlinesI() []Time {
	k.checkClassI()
	l := &k.vtlist
	var out []Time
	t := l.lasttime
	for dlp := l.dlist.next; dlp != &l.dlist; dlp = dlp.next {
		t = TimeAdd(t, dlp.delta)
		out = append(out, t)
	}
	return out
}
