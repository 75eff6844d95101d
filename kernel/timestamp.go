package kernel

// TimeStamp is a 64-bit monotonic time in ticks. Its low 32 bits track the
// system time.
type TimeStamp uint64

// GetTimeStampI returns a monotonic 64-bit stamp. It must be called at least
// once per system time wrap to stay monotonic.
func (k *Kernel) GetTimeStampI() TimeStamp {
	k.checkClassI()

	l := &k.vtlist
	last := l.laststamp
	stamp := last + uint64(TimeDiff(Time(last), k.port.Now()))
	k.check(stamp >= last, "time stamp moved backwards")
	l.laststamp = stamp
	return TimeStamp(stamp)
}

// GetTimeStamp is GetTimeStampI taking the lock.
func (k *Kernel) GetTimeStamp() TimeStamp {
	k.Lock()
	s := k.GetTimeStampI()
	k.Unlock()
	return s
}

// ResetTimeStampI restarts the stamp counter from the current system time.
func (k *Kernel) ResetTimeStampI() {
	k.checkClassI()
	k.vtlist.laststamp = uint64(k.port.Now())
}
