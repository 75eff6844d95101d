package kernel

// ThreadInfo is a snapshot of one registered thread.
type ThreadInfo struct {
	ID           ThreadID
	Name         string
	Priority     Priority
	RealPriority Priority
	State        ThreadState
	Origin       Origin
	Pending      EventMask
	Waiters      int
	Terminate    bool
}

func (tp *Thread) info() ThreadInfo {
	return ThreadInfo{
		ID:           tp.id,
		Name:         tp.name,
		Priority:     tp.prio,
		RealPriority: tp.realPrio,
		State:        tp.state,
		Origin:       tp.origin,
		Pending:      tp.epending,
		Waiters:      tp.waiters,
		Terminate:    tp.terminate,
	}
}

// ThreadsI returns the registered threads in creation order.
func (k *Kernel) ThreadsI() []ThreadInfo {
	k.checkClassI()
	out := make([]ThreadInfo, 0, k.nthreads)
	for l := k.registry.next; l != &k.registry; l = l.next {
		out = append(out, l.owner.info())
	}
	return out
}

// Threads is ThreadsI taking the lock.
func (k *Kernel) Threads() []ThreadInfo {
	k.Lock()
	out := k.ThreadsI()
	k.Unlock()
	return out
}

// FindThread returns the first registered thread named name, or nil.
func (k *Kernel) FindThread(name string) *Thread {
	k.Lock()
	defer k.Unlock()
	for l := k.registry.next; l != &k.registry; l = l.next {
		if l.owner.name == name {
			return l.owner
		}
	}
	return nil
}

// ThreadCount returns the number of registered threads.
func (k *Kernel) ThreadCount() int {
	return k.nthreads
}
