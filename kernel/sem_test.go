package kernel_test

import (
	"testing"

	"ember/kernel"
)

func TestSemaphoreWakesInArrivalOrder(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	sem := kernel.NewSemaphore(k, 0)

	var out []byte
	var tps []*kernel.Thread
	// Priorities differ, but the queue is FIFO.
	for i, name := range []string{"A", "B", "C"} {
		name := name
		tps = append(tps, spawn(k, name, normal+1+kernel.Priority(i), func() kernel.Msg {
			msg := sem.Wait()
			out = append(out, name...)
			return msg
		}))
	}

	k.Lock()
	if n := sem.GetCounterI(); n != -3 {
		t.Fatalf("expected counter -3, got %d", n)
	}
	k.Unlock()

	for range tps {
		sem.Signal()
	}
	for _, tp := range tps {
		if code := k.Wait(tp); code != kernel.MsgOK {
			t.Fatalf("expected MsgOK, got %s", code)
		}
	}
	expectString(t, "wake order", "ABC", string(out))
}

func TestSemaphoreWaitTimeout(t *testing.T) {
	k, p := boot(t, kernel.Config{})
	sem := kernel.NewSemaphore(k, 1)

	if msg := sem.WaitTimeout(kernel.Immediate); msg != kernel.MsgOK {
		t.Fatalf("expected to take the unit, got %s", msg)
	}
	if msg := sem.WaitTimeout(kernel.Immediate); msg != kernel.MsgTimeout {
		t.Fatalf("expected immediate timeout, got %s", msg)
	}
	if msg := sem.WaitTimeout(20); msg != kernel.MsgTimeout {
		t.Fatalf("expected timeout, got %s", msg)
	}
	if p.Now() != 20 {
		t.Fatalf("expected time 20, got %d", p.Now())
	}

	k.Lock()
	n := sem.GetCounterI()
	k.Unlock()
	if n != 0 {
		t.Fatalf("expected the counter restored to 0, got %d", n)
	}
}

func TestSemaphoreResetWakesWaiters(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	sem := kernel.NewSemaphore(k, 0)

	a := spawn(k, "A", normal+1, func() kernel.Msg { return sem.Wait() })
	b := spawn(k, "B", normal+1, func() kernel.Msg { return sem.Wait() })

	sem.Reset(2)
	if code := k.Wait(a); code != kernel.MsgReset {
		t.Fatalf("expected MsgReset, got %s", code)
	}
	if code := k.Wait(b); code != kernel.MsgReset {
		t.Fatalf("expected MsgReset, got %s", code)
	}

	k.Lock()
	n := sem.GetCounterI()
	k.Unlock()
	if n != 2 {
		t.Fatalf("expected counter 2 after reset, got %d", n)
	}
}

func TestSemaphoreAddCounter(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	sem := kernel.NewSemaphore(k, 0)

	woke := 0
	for _, name := range []string{"A", "B"} {
		spawn(k, name, normal+1, func() kernel.Msg {
			sem.Wait()
			woke++
			return kernel.MsgOK
		})
	}

	k.Lock()
	sem.AddCounterI(3)
	k.RescheduleS()
	n := sem.GetCounterI()
	k.Unlock()

	if woke != 2 {
		t.Fatalf("expected both waiters released, got %d", woke)
	}
	if n != 1 {
		t.Fatalf("expected one unit left, got %d", n)
	}
}

func TestSignalWait(t *testing.T) {
	k, _ := boot(t, kernel.Config{})
	ping := kernel.NewSemaphore(k, 0)
	pong := kernel.NewSemaphore(k, 0)

	var out []byte
	tp := spawn(k, "echo", normal-1, func() kernel.Msg {
		for i := 0; i < 3; i++ {
			ping.Wait()
			out = append(out, 'o')
			pong.Signal()
		}
		return kernel.MsgOK
	})

	for i := 0; i < 3; i++ {
		out = append(out, 'i')
		if msg := kernel.SignalWait(ping, pong); msg != kernel.MsgOK {
			t.Fatalf("expected MsgOK, got %s", msg)
		}
	}
	k.Wait(tp)
	expectString(t, "exchange", "ioioio", string(out))
}
