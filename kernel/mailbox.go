package kernel

// Mailbox is a bounded FIFO of messages of type T. Producers block on free
// slots and consumers on filled ones; both counts are semaphores so
// timeouts and resets behave exactly as on a Semaphore.
type Mailbox[T any] struct {
	_ [0]func() // prevent accidental copying.

	k      *Kernel
	buffer []T
	wr, rd int
	empty  Semaphore
	full   Semaphore
}

// NewMailbox returns an empty mailbox of k holding up to size messages.
func NewMailbox[T any](k *Kernel, size int) *Mailbox[T] {
	mb := &Mailbox[T]{}
	mb.Init(k, make([]T, size))
	return mb
}

// Init binds mb to k using buf as its slot storage.
func (mb *Mailbox[T]) Init(k *Kernel, buf []T) {
	k.check(len(buf) > 0, "empty mailbox buffer")
	mb.k = k
	mb.buffer = buf
	mb.wr, mb.rd = 0, 0
	mb.empty.Init(k, int32(len(buf)))
	mb.full.Init(k, 0)
}

// Size returns the capacity of mb.
func (mb *Mailbox[T]) Size() int { return len(mb.buffer) }

// ResetI drops every queued message and readies every blocked producer and
// consumer with MsgReset.
func (mb *Mailbox[T]) ResetI() {
	mb.k.checkClassI()
	var zero T
	for i := range mb.buffer {
		mb.buffer[i] = zero
	}
	mb.wr, mb.rd = 0, 0
	mb.empty.ResetI(int32(len(mb.buffer)))
	mb.full.ResetI(0)
}

// Reset is ResetI taking the lock and rescheduling.
func (mb *Mailbox[T]) Reset() {
	k := mb.k
	k.Lock()
	mb.ResetI()
	k.RescheduleS()
	k.Unlock()
}

func (mb *Mailbox[T]) putTail(msg T) {
	mb.buffer[mb.wr] = msg
	mb.wr++
	if mb.wr >= len(mb.buffer) {
		mb.wr = 0
	}
}

func (mb *Mailbox[T]) putHead(msg T) {
	mb.rd--
	if mb.rd < 0 {
		mb.rd = len(mb.buffer) - 1
	}
	mb.buffer[mb.rd] = msg
}

func (mb *Mailbox[T]) take() T {
	var zero T
	msg := mb.buffer[mb.rd]
	mb.buffer[mb.rd] = zero
	mb.rd++
	if mb.rd >= len(mb.buffer) {
		mb.rd = 0
	}
	return msg
}

// PostS appends msg, waiting at most timeout for a free slot.
func (mb *Mailbox[T]) PostS(msg T, timeout Interval) Msg {
	rdymsg := mb.empty.WaitTimeoutS(timeout)
	if rdymsg == MsgOK {
		mb.putTail(msg)
		mb.full.SignalI()
		mb.k.RescheduleS()
	}
	return rdymsg
}

// Post is PostS taking the lock.
func (mb *Mailbox[T]) Post(msg T, timeout Interval) Msg {
	mb.k.Lock()
	rdymsg := mb.PostS(msg, timeout)
	mb.k.Unlock()
	return rdymsg
}

// PostI appends msg if a slot is free, MsgTimeout otherwise.
func (mb *Mailbox[T]) PostI(msg T) Msg {
	mb.k.checkClassI()
	if mb.empty.cnt <= 0 {
		return MsgTimeout
	}
	mb.empty.cnt--
	mb.putTail(msg)
	mb.full.SignalI()
	return MsgOK
}

// PostAheadS puts msg in front of the queued messages, so the next Fetch
// returns it.
func (mb *Mailbox[T]) PostAheadS(msg T, timeout Interval) Msg {
	rdymsg := mb.empty.WaitTimeoutS(timeout)
	if rdymsg == MsgOK {
		mb.putHead(msg)
		mb.full.SignalI()
		mb.k.RescheduleS()
	}
	return rdymsg
}

// PostAhead is PostAheadS taking the lock.
func (mb *Mailbox[T]) PostAhead(msg T, timeout Interval) Msg {
	mb.k.Lock()
	rdymsg := mb.PostAheadS(msg, timeout)
	mb.k.Unlock()
	return rdymsg
}

// PostAheadI is PostAheadS that never waits.
func (mb *Mailbox[T]) PostAheadI(msg T) Msg {
	mb.k.checkClassI()
	if mb.empty.cnt <= 0 {
		return MsgTimeout
	}
	mb.empty.cnt--
	mb.putHead(msg)
	mb.full.SignalI()
	return MsgOK
}

// FetchS removes the oldest message, waiting at most timeout for one. The
// message is the zero T unless the result is MsgOK.
func (mb *Mailbox[T]) FetchS(timeout Interval) (T, Msg) {
	var msg T
	rdymsg := mb.full.WaitTimeoutS(timeout)
	if rdymsg == MsgOK {
		msg = mb.take()
		mb.empty.SignalI()
		mb.k.RescheduleS()
	}
	return msg, rdymsg
}

// Fetch is FetchS taking the lock.
func (mb *Mailbox[T]) Fetch(timeout Interval) (T, Msg) {
	mb.k.Lock()
	msg, rdymsg := mb.FetchS(timeout)
	mb.k.Unlock()
	return msg, rdymsg
}

// FetchI removes the oldest message if there is one, MsgTimeout otherwise.
func (mb *Mailbox[T]) FetchI() (T, Msg) {
	var msg T
	mb.k.checkClassI()
	if mb.full.cnt <= 0 {
		return msg, MsgTimeout
	}
	mb.full.cnt--
	msg = mb.take()
	mb.empty.SignalI()
	return msg, MsgOK
}

// PeekI returns the oldest message without removing it.
func (mb *Mailbox[T]) PeekI() (T, bool) {
	mb.k.checkClassI()
	if mb.full.cnt <= 0 {
		var zero T
		return zero, false
	}
	return mb.buffer[mb.rd], true
}

// GetFreeCountI returns the number of free slots.
func (mb *Mailbox[T]) GetFreeCountI() int {
	mb.k.checkClassI()
	return int(max(mb.empty.cnt, 0))
}

// GetUsedCountI returns the number of queued messages.
func (mb *Mailbox[T]) GetUsedCountI() int {
	mb.k.checkClassI()
	return int(max(mb.full.cnt, 0))
}
