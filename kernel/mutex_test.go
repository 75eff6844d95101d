package kernel_test

import (
	"strings"
	"testing"

	"ember/kernel"
)

func TestMutexPriorityInheritanceChain(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	m1 := kernel.NewMutex(k)
	m2 := kernel.NewMutex(k)

	var log []string
	var lowSeen, midSeen kernel.Priority

	low := spawn(k, "L", normal+2, func() kernel.Msg {
		m1.Lock()
		k.Sleep(10)
		lowSeen = k.Self().Priority()
		log = append(log, "L")
		m1.Unlock()
		return kernel.MsgOK
	})
	mid := spawn(k, "Mi", normal+12, func() kernel.Msg {
		m2.Lock()
		m1.Lock()
		midSeen = k.Self().Priority()
		log = append(log, "Mi")
		m1.Unlock()
		m2.Unlock()
		return kernel.MsgOK
	})
	high := spawn(k, "H", normal+22, func() kernel.Msg {
		m2.Lock()
		log = append(log, "H")
		m2.Unlock()
		return kernel.MsgOK
	})

	// H is blocked on m2, owned by Mi, blocked on m1, owned by L.
	if p := low.Priority(); p != normal+22 {
		t.Fatalf("expected L boosted to %d, got %d", normal+22, p)
	}
	if p := mid.Priority(); p != normal+22 {
		t.Fatalf("expected Mi boosted to %d, got %d", normal+22, p)
	}

	k.Wait(high)
	k.Wait(mid)
	k.Wait(low)

	expectString(t, "acquisition order", "L Mi H", strings.Join(log, " "))
	if lowSeen != normal+22 || midSeen != normal+22 {
		t.Fatalf("expected both owners to run boosted, got L=%d Mi=%d", lowSeen, midSeen)
	}
	if low.Priority() != normal+2 || mid.Priority() != normal+12 {
		t.Fatalf("expected priorities restored, got L=%d Mi=%d", low.Priority(), mid.Priority())
	}
	if m1.Owner() != nil || m2.Owner() != nil {
		t.Fatalf("expected both mutexes free")
	}
}

func TestMutexHandoffIsFIFO(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	m := kernel.NewMutex(k)

	var out []byte
	m.Lock()
	for i, name := range []string{"A", "B"} {
		name := name
		spawn(k, name, normal+1+kernel.Priority(i), func() kernel.Msg {
			m.Lock()
			out = append(out, name...)
			m.Unlock()
			return kernel.MsgOK
		})
	}
	if p := k.Self().Priority(); p != normal+2 {
		t.Fatalf("expected owner boosted to %d, got %d", normal+2, p)
	}

	m.Unlock()
	expectString(t, "handoff order", "AB", string(out))
	if p := k.Self().Priority(); p != normal {
		t.Fatalf("expected priority restored to %d, got %d", normal, p)
	}
}

func TestMutexHandoffInheritsQueuedWaiters(t *testing.T) {
	for _, tc := range []struct {
		name   string
		unlock func(k *kernel.Kernel, m *kernel.Mutex)
	}{
		{"unlock", func(_ *kernel.Kernel, m *kernel.Mutex) { m.Unlock() }},
		{"unlock all", func(k *kernel.Kernel, _ *kernel.Mutex) { k.UnlockAll() }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k, _ := boot(t, kernel.Config{})
			m := kernel.NewMutex(k)

			var out []byte
			var lowSeen kernel.Priority
			m.Lock()
			// L queues first, so it gets the mutex ahead of the more urgent H.
			low := spawn(k, "L", normal+1, func() kernel.Msg {
				m.Lock()
				lowSeen = k.Self().Priority()
				out = append(out, 'L')
				m.Unlock()
				return kernel.MsgOK
			})
			high := spawn(k, "H", normal+20, func() kernel.Msg {
				m.Lock()
				out = append(out, 'H')
				m.Unlock()
				return kernel.MsgOK
			})

			tc.unlock(k, m)
			k.Wait(high)
			k.Wait(low)

			expectString(t, "handoff order", "LH", string(out))
			if lowSeen != normal+20 {
				t.Fatalf("expected L to own the mutex at %d, got %d", normal+20, lowSeen)
			}
			if p := low.Priority(); p != normal+1 {
				t.Fatalf("expected L restored to %d, got %d", normal+1, p)
			}
			if p := k.Self().Priority(); p != normal {
				t.Fatalf("expected main restored to %d, got %d", normal, p)
			}
		})
	}
}

func TestMutexTryLock(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	m := kernel.NewMutex(k)

	if !m.TryLock() {
		t.Fatalf("expected TryLock on a free mutex to succeed")
	}
	got := true
	tp := spawn(k, "other", normal+1, func() kernel.Msg {
		got = m.TryLock()
		return kernel.MsgOK
	})
	k.Wait(tp)
	if got {
		t.Fatalf("expected TryLock on an owned mutex to fail")
	}
	if m.Owner() != k.Self() {
		t.Fatalf("expected main to still own the mutex")
	}
	m.Unlock()
}

func TestMutexRecursive(t *testing.T) {
	k, _ := boot(t, kernel.Config{RecursiveMutexes: true})
	m := kernel.NewMutex(k)

	m.Lock()
	m.Lock()
	if !m.TryLock() {
		t.Fatalf("expected a recursive TryLock to succeed")
	}
	m.Unlock()
	m.Unlock()
	if m.Owner() != k.Self() {
		t.Fatalf("expected the mutex held until the last unlock")
	}
	m.Unlock()
	if m.Owner() != nil {
		t.Fatalf("expected the mutex free")
	}
}

func TestMutexRelockHalts(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	m := kernel.NewMutex(k)

	m.Lock()
	if reason := expectHalt(m.Lock); reason != "mutex already owned" {
		t.Fatalf("expected mutex already owned halt, got %q", reason)
	}
}

func TestMutexUnlockOrderHalts(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	a := kernel.NewMutex(k)
	b := kernel.NewMutex(k)

	a.Lock()
	b.Lock()
	if reason := expectHalt(a.Unlock); reason != "not next in list" {
		t.Fatalf("expected not next in list halt, got %q", reason)
	}
}

func TestMutexUnlockAll(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	a := kernel.NewMutex(k)
	b := kernel.NewMutex(k)

	a.Lock()
	b.Lock()
	k.Lock()
	next := k.GetNextMutexS()
	k.Unlock()
	if next != b {
		t.Fatalf("expected the last locked mutex next")
	}

	got := false
	tp := spawn(k, "waiter", normal+1, func() kernel.Msg {
		a.Lock()
		got = true
		a.Unlock()
		return kernel.MsgOK
	})

	k.UnlockAll()
	k.Wait(tp)
	if !got {
		t.Fatalf("expected the waiter to get the mutex")
	}
	if a.Owner() != nil || b.Owner() != nil {
		t.Fatalf("expected both mutexes free")
	}
	if p := k.Self().Priority(); p != normal {
		t.Fatalf("expected priority %d, got %d", normal, p)
	}
}
