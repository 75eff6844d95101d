package kernel

import "math/bits"

// EventMask is a set of event bits pending on, or awaited by, a thread.
type EventMask uint32

// EventFlags are source-specific flags accumulated by a listener.
type EventFlags uint32

// AllEvents matches every event bit.
const AllEvents = ^EventMask(0)

// EventID returns the mask with only bit id set.
func EventID(id int) EventMask { return EventMask(1) << uint(id) }

// EventListener links one thread to one EventSource.
type EventListener struct {
	next     *EventListener
	listener *Thread
	events   EventMask
	flags    EventFlags
	wflags   EventFlags
}

// EventSource broadcasts events to its registered listeners. It keeps no
// queue: an event nobody listens to is lost.
type EventSource struct {
	k    *Kernel
	head *EventListener
}

// NewEventSource returns an event source of k.
func NewEventSource(k *Kernel) *EventSource {
	es := &EventSource{}
	es.Init(k)
	return es
}

// Init binds es to k with no listeners.
func (es *EventSource) Init(k *Kernel) {
	es.k = k
	es.head = nil
}

// RegisterMaskWithFlags registers the running thread on es through el.
// A broadcast pends events on it when the broadcast flags intersect
// wflags, or always for a flagless broadcast.
func (es *EventSource) RegisterMaskWithFlags(el *EventListener, events EventMask, wflags EventFlags) {
	k := es.k
	k.Lock()
	el.listener = k.current
	el.events = events
	el.flags = 0
	el.wflags = wflags
	el.next = es.head
	es.head = el
	k.Unlock()
}

// RegisterMask registers the running thread on es, pending events on every
// broadcast.
func (es *EventSource) RegisterMask(el *EventListener, events EventMask) {
	es.RegisterMaskWithFlags(el, events, ^EventFlags(0))
}

// Register is RegisterMask with the single event bit id.
func (es *EventSource) Register(el *EventListener, id int) {
	es.RegisterMask(el, EventID(id))
}

// Unregister removes el from es. Removing a listener that is not
// registered does nothing.
func (es *EventSource) Unregister(el *EventListener) {
	k := es.k
	k.Lock()
	for p := &es.head; *p != nil; p = &(*p).next {
		if *p == el {
			*p = el.next
			el.next = nil
			break
		}
	}
	k.Unlock()
}

// IsListeningI reports whether es has any listener.
func (es *EventSource) IsListeningI() bool {
	es.k.checkClassI()
	return es.head != nil
}

// BroadcastFlagsI adds flags to every listener and pends its events on the
// listening thread.
func (es *EventSource) BroadcastFlagsI(flags EventFlags) {
	k := es.k
	k.checkClassI()
	for el := es.head; el != nil; el = el.next {
		el.flags |= flags
		if flags == 0 || el.wflags&flags != 0 {
			k.SignalEventsI(el.listener, el.events)
		}
	}
}

// BroadcastI is BroadcastFlagsI without flags.
func (es *EventSource) BroadcastI() {
	es.BroadcastFlagsI(0)
}

// BroadcastFlags is BroadcastFlagsI taking the lock and rescheduling.
func (es *EventSource) BroadcastFlags(flags EventFlags) {
	k := es.k
	k.Lock()
	es.BroadcastFlagsI(flags)
	k.RescheduleS()
	k.Unlock()
}

// Broadcast pends the listeners' events.
func (es *EventSource) Broadcast() {
	es.BroadcastFlags(0)
}

// GetAndClearFlags returns the flags accumulated on el and clears them.
func (el *EventListener) GetAndClearFlags(k *Kernel) EventFlags {
	k.Lock()
	f := el.flags
	el.flags = 0
	k.Unlock()
	return f
}

// SignalEventsI pends mask on tp and readies it if it waits for them.
func (k *Kernel) SignalEventsI(tp *Thread, mask EventMask) {
	k.checkClassI()
	tp.epending |= mask
	if (tp.state == StateWTOrEvt && tp.epending&tp.ewmask != 0) ||
		(tp.state == StateWTAndEvt && tp.epending&tp.ewmask == tp.ewmask) {
		k.ReadyI(tp, MsgOK)
	}
}

// SignalEvents is SignalEventsI taking the lock and rescheduling.
func (k *Kernel) SignalEvents(tp *Thread, mask EventMask) {
	k.Lock()
	k.SignalEventsI(tp, mask)
	k.RescheduleS()
	k.Unlock()
}

// AddEvents pends mask on the running thread and returns the new pending
// set.
func (k *Kernel) AddEvents(mask EventMask) EventMask {
	k.Lock()
	k.current.epending |= mask
	m := k.current.epending
	k.Unlock()
	return m
}

// GetAndClearEvents clears mask from the running thread's pending events
// and returns the events it cleared.
func (k *Kernel) GetAndClearEvents(mask EventMask) EventMask {
	k.Lock()
	m := k.current.epending & mask
	k.current.epending &^= m
	k.Unlock()
	return m
}

// waitOrS waits until some bit of mask is pending. It returns the pending
// bits of mask, 0 on timeout.
func (k *Kernel) waitOrS(mask EventMask, timeout Interval) EventMask {
	ctp := k.current
	m := ctp.epending & mask
	if m != 0 {
		return m
	}
	if timeout == Immediate {
		return 0
	}
	ctp.ewmask = mask
	if k.goSleepTimeoutS(StateWTOrEvt, timeout) < MsgOK {
		return 0
	}
	return ctp.epending & mask
}

// WaitOne waits for any event of mask and clears only the lowest pending
// one, which it returns.
func (k *Kernel) WaitOne(mask EventMask) EventMask {
	return k.WaitOneTimeout(mask, Infinite)
}

// WaitOneTimeout is WaitOne bounded by timeout. It returns 0 on timeout.
func (k *Kernel) WaitOneTimeout(mask EventMask, timeout Interval) EventMask {
	k.Lock()
	m := k.waitOrS(mask, timeout)
	if m != 0 {
		m = EventMask(1) << uint(bits.TrailingZeros32(uint32(m)))
		k.current.epending &^= m
	}
	k.Unlock()
	return m
}

// WaitAny waits for any event of mask and clears every pending one of
// mask, returning them.
func (k *Kernel) WaitAny(mask EventMask) EventMask {
	return k.WaitAnyTimeout(mask, Infinite)
}

// WaitAnyTimeout is WaitAny bounded by timeout. It returns 0 on timeout.
func (k *Kernel) WaitAnyTimeout(mask EventMask, timeout Interval) EventMask {
	k.Lock()
	m := k.waitOrS(mask, timeout)
	k.current.epending &^= m
	k.Unlock()
	return m
}

// WaitAll waits until every event of mask is pending and clears them.
func (k *Kernel) WaitAll(mask EventMask) EventMask {
	return k.WaitAllTimeout(mask, Infinite)
}

// WaitAllTimeout is WaitAll bounded by timeout. It returns 0 on timeout.
func (k *Kernel) WaitAllTimeout(mask EventMask, timeout Interval) EventMask {
	k.Lock()
	ctp := k.current
	if ctp.epending&mask != mask {
		if timeout == Immediate {
			k.Unlock()
			return 0
		}
		ctp.ewmask = mask
		if k.goSleepTimeoutS(StateWTAndEvt, timeout) < MsgOK {
			k.Unlock()
			return 0
		}
	}
	ctp.epending &^= mask
	k.Unlock()
	return mask
}

// Dispatch calls handlers[i](i) for every bit i set in mask.
func Dispatch(handlers []func(id int), mask EventMask) {
	for mask != 0 {
		i := bits.TrailingZeros32(uint32(mask))
		mask &^= EventID(i)
		if i < len(handlers) && handlers[i] != nil {
			handlers[i](i)
		}
	}
}
