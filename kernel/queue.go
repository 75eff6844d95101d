package kernel

// link is the intrusive queue node embedded in every Thread. A thread is a
// member of at most one queue at a time: the ready list or one wait queue.
//
// Queues are circular and headed by a sentinel link. A sentinel's owner is
// nil for FIFO wait queues; the ready list sentinel is owned by a Thread
// whose priority sorts after every real priority.
type link struct {
	next  *link
	prev  *link
	owner *Thread
}

// threadsQueue is a FIFO wait queue. It never owns the threads in it.
type threadsQueue struct {
	head link
}

func (q *threadsQueue) init() {
	q.head.next = &q.head
	q.head.prev = &q.head
}

func (q *threadsQueue) isEmpty() bool {
	return q.head.next == &q.head
}

func (q *threadsQueue) notEmpty() bool {
	return q.head.next != &q.head
}

// insert appends tp at the tail.
func (q *threadsQueue) insert(tp *Thread) {
	l := &tp.queue
	l.next = &q.head
	l.prev = q.head.prev
	l.prev.next = l
	q.head.prev = l
}

// fifoRemove unlinks and returns the head thread. The queue is not empty.
func (q *threadsQueue) fifoRemove() *Thread {
	l := q.head.next
	q.head.next = l.next
	q.head.next.prev = &q.head
	l.next, l.prev = nil, nil
	return l.owner
}

// lifoRemove unlinks and returns the tail thread. The queue is not empty.
func (q *threadsQueue) lifoRemove() *Thread {
	l := q.head.prev
	q.head.prev = l.prev
	q.head.prev.next = &q.head
	l.next, l.prev = nil, nil
	return l.owner
}

// first returns the head thread without removing it, or nil.
func (q *threadsQueue) first() *Thread {
	if q.isEmpty() {
		return nil
	}
	return q.head.next.owner
}

// maxPrio returns the highest priority among the queued threads, or
// NoPriority for an empty queue.
func (q *threadsQueue) maxPrio() Priority {
	p := NoPriority
	for l := q.head.next; l != &q.head; l = l.next {
		if l.owner.prio > p {
			p = l.owner.prio
		}
	}
	return p
}

// dequeue unlinks tp from whatever queue holds it.
func dequeue(tp *Thread) *Thread {
	l := &tp.queue
	l.prev.next = l.next
	l.next.prev = l.prev
	l.next, l.prev = nil, nil
	return tp
}

// insertBefore links tp in front of cp.
func insertBefore(tp *Thread, cp *link) {
	l := &tp.queue
	l.next = cp
	l.prev = cp.prev
	l.prev.next = l
	cp.prev = l
}
