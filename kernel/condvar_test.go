package kernel_test

import (
	"testing"

	"ember/kernel"
)

func TestCondVarSignalReacquiresMutex(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	m := kernel.NewMutex(k)
	cv := kernel.NewCondVar(k)

	ready := false
	owned := false
	tp := spawn(k, "waiter", normal+1, func() kernel.Msg {
		m.Lock()
		for !ready {
			cv.Wait()
		}
		owned = m.Owner() == k.Self()
		m.Unlock()
		return kernel.MsgOK
	})

	m.Lock()
	ready = true
	cv.Signal()
	// The waiter is now blocked on m, which main still owns.
	if owned {
		t.Fatalf("expected the waiter to wait for the mutex")
	}
	m.Unlock()

	k.Wait(tp)
	if !owned {
		t.Fatalf("expected the waiter to return holding the mutex")
	}
}

func TestCondVarTimeoutReacquiresMutex(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	m := kernel.NewMutex(k)
	cv := kernel.NewCondVar(k)

	var msg kernel.Msg
	var at kernel.Time
	owned := false
	tp := spawn(k, "waiter", normal+1, func() kernel.Msg {
		m.Lock()
		msg = cv.WaitTimeout(20)
		at = k.Now()
		owned = m.Owner() == k.Self()
		m.Unlock()
		return kernel.MsgOK
	})

	k.Wait(tp)
	if msg != kernel.MsgTimeout {
		t.Fatalf("expected timeout, got %s", msg)
	}
	if at != 20 {
		t.Fatalf("expected the timeout at 20, got %d", at)
	}
	if !owned {
		t.Fatalf("expected the mutex held after a timeout")
	}
}

func TestCondVarBroadcast(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	m := kernel.NewMutex(k)
	cv := kernel.NewCondVar(k)

	woke := 0
	var tps []*kernel.Thread
	for _, name := range []string{"A", "B", "C"} {
		tps = append(tps, spawn(k, name, normal+1, func() kernel.Msg {
			m.Lock()
			cv.Wait()
			woke++
			m.Unlock()
			return kernel.MsgOK
		}))
	}

	cv.Signal()
	if woke != 1 {
		t.Fatalf("expected one waiter woken, got %d", woke)
	}
	cv.Broadcast()
	for _, tp := range tps {
		k.Wait(tp)
	}
	if woke != 3 {
		t.Fatalf("expected 3 waiters woken, got %d", woke)
	}
}

func TestCondVarWaitWithoutMutexHalts(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	cv := kernel.NewCondVar(k)

	reason := expectHalt(func() { cv.Wait() })
	if reason != "condition wait without a mutex" {
		t.Fatalf("expected condition wait without a mutex halt, got %q", reason)
	}
}
