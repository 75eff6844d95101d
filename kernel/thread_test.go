package kernel_test

import (
	"errors"
	"testing"

	"ember/kernel"
	"ember/mem"
)

func TestWaitReturnsExitCode(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	tp := spawn(k, "worker", normal-1, func() kernel.Msg {
		k.Sleep(3)
		return 42
	})
	if code := k.Wait(tp); code != 42 {
		t.Fatalf("expected exit code 42, got %d", code)
	}
	if tp.State() != kernel.StateFinal {
		t.Fatalf("expected final state, got %s", tp.State())
	}
	// Waiting on a thread that already exited does not block.
	if code := k.Wait(tp); code != 42 {
		t.Fatalf("expected exit code 42 again, got %d", code)
	}
}

func TestWaitTimeout(t *testing.T) {
	k, p := boot(t, kernel.Config{})

	tp := spawn(k, "slow", normal+1, func() kernel.Msg {
		k.Sleep(50)
		return 1
	})
	if _, ok := k.WaitTimeout(tp, kernel.Immediate); ok {
		t.Fatalf("expected immediate wait to fail")
	}
	if _, ok := k.WaitTimeout(tp, 10); ok {
		t.Fatalf("expected wait to time out")
	}
	if p.Now() != 10 {
		t.Fatalf("expected time 10, got %d", p.Now())
	}
	code, ok := k.WaitTimeout(tp, 100)
	if !ok || code != 1 {
		t.Fatalf("expected exit code 1, got %d (ok %v)", code, ok)
	}
	if p.Now() != 50 {
		t.Fatalf("expected time 50, got %d", p.Now())
	}
}

func TestHeapThreadReclaimedByLastWaiter(t *testing.T) {
	k, _ := boot(t, kernel.Config{Dynamic: true})
	heap := mem.NewHeap(4 * kernel.MinStackSize)

	target, err := k.CreateFromHeap(heap, kernel.MinStackSize, "target", normal-1, func(any) kernel.Msg {
		k.Sleep(20)
		return 5
	}, nil)
	if err != nil {
		t.Fatalf("expected heap thread, got %v", err)
	}
	if target.Origin() != kernel.OriginHeap {
		t.Fatalf("expected heap origin, got %s", target.Origin())
	}

	var codes [2]kernel.Msg
	w1 := spawn(k, "w1", normal+1, func() kernel.Msg {
		codes[0] = k.Wait(target)
		return kernel.MsgOK
	})
	w2 := spawn(k, "w2", normal+1, func() kernel.Msg {
		codes[1] = k.Wait(target)
		return kernel.MsgOK
	})
	k.Wait(w1)
	k.Wait(w2)

	if codes[0] != 5 || codes[1] != 5 {
		t.Fatalf("expected both waiters to get 5, got %v", codes)
	}
	s := heap.Stats()
	if s.Frees != 1 || s.InUse != 0 {
		t.Fatalf("expected exactly one free and nothing in use, got %+v", s)
	}
	if k.FindThread("target") != nil {
		t.Fatalf("expected reclaimed thread to leave the registry")
	}
}

func TestTimedWaiterRacingExitReclaims(t *testing.T) {
	k, _ := boot(t, kernel.Config{Dynamic: true})
	heap := mem.NewHeap(kernel.MinStackSize)

	target, err := k.CreateFromHeap(heap, kernel.MinStackSize, "target", normal+5, func(any) kernel.Msg {
		k.Sleep(10)
		return 7
	}, nil)
	if err != nil {
		t.Fatalf("expected heap thread, got %v", err)
	}

	var waited, timed kernel.Msg
	var timedOK bool
	b := spawn(k, "B", normal+2, func() kernel.Msg {
		waited = k.Wait(target)
		return kernel.MsgOK
	})
	// A's timeout falls on the tick the target exits, but A only runs after
	// the target and B.
	a := spawn(k, "A", normal+1, func() kernel.Msg {
		timed, timedOK = k.WaitTimeout(target, 10)
		return kernel.MsgOK
	})
	k.Wait(b)
	k.Wait(a)

	if waited != 7 || timed != 7 || !timedOK {
		t.Fatalf("expected both waiters to get 7, got %d and %d (ok %v)", waited, timed, timedOK)
	}
	if s := heap.Stats(); s.Frees != 1 || s.InUse != 0 {
		t.Fatalf("expected the target reclaimed once, got %+v", s)
	}
	if k.FindThread("target") != nil {
		t.Fatalf("expected reclaimed thread to leave the registry")
	}
}

func TestCreateFromHeapOutOfMemory(t *testing.T) {
	k, _ := boot(t, kernel.Config{Dynamic: true})
	heap := mem.NewHeap(kernel.MinStackSize)

	_, err := k.CreateFromHeap(heap, 2*kernel.MinStackSize, "big", normal-1, func(any) kernel.Msg {
		return kernel.MsgOK
	}, nil)
	if !errors.Is(err, kernel.ErrNoMemory) {
		t.Fatalf("expected ErrNoMemory, got %v", err)
	}
}

func TestPoolThreadReclaimed(t *testing.T) {
	k, _ := boot(t, kernel.Config{Dynamic: true})
	pool := mem.NewPool(kernel.MinStackSize, 1)
	body := func(any) kernel.Msg { return kernel.MsgOK }

	tp, err := k.CreateFromPool(pool, "p1", normal-1, body, nil)
	if err != nil {
		t.Fatalf("expected pool thread, got %v", err)
	}
	if _, err := k.CreateFromPool(pool, "p2", normal-1, body, nil); !errors.Is(err, kernel.ErrNoMemory) {
		t.Fatalf("expected ErrNoMemory from an exhausted pool, got %v", err)
	}

	k.Wait(tp)
	tp, err = k.CreateFromPool(pool, "p3", normal-1, body, nil)
	if err != nil {
		t.Fatalf("expected the reclaimed workspace to be reusable, got %v", err)
	}
	k.Wait(tp)
	if s := pool.Stats(); s.Allocs != 2 || s.Frees != 2 {
		t.Fatalf("unexpected pool stats %+v", s)
	}
}

func TestTerminateRequest(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	tp := spawn(k, "loop", normal+1, func() kernel.Msg {
		n := 0
		for !k.ShouldTerminate() {
			n++
			k.Sleep(1)
		}
		return kernel.Msg(n)
	})

	k.Sleep(5)
	k.Terminate(tp)
	if code := k.Wait(tp); code < 5 {
		t.Fatalf("expected at least 5 iterations, got %d", code)
	}
}

func TestInitThreadStartsSuspended(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	ran := false
	ws := kernel.NewWorkspace(kernel.MinStackSize)
	tp := k.InitThread(ws, "lazy", normal+1, func(any) kernel.Msg {
		ran = true
		return kernel.MsgOK
	}, nil)
	if ran || tp.State() != kernel.StateSuspended {
		t.Fatalf("expected a suspended thread, got state %s", tp.State())
	}
	if ws.Thread() != tp {
		t.Fatalf("expected the control block inside the workspace")
	}

	k.Resume(tp)
	if !ran {
		t.Fatalf("expected the resumed thread to run")
	}
}

func TestSuspendRefResumedFromInterrupt(t *testing.T) {
	k, p := boot(t, kernel.Config{})

	var ref kernel.ThreadRef
	got := kernel.MsgOK
	tp := spawn(k, "driver", normal+1, func() kernel.Msg {
		k.Lock()
		got = k.SuspendRefS(&ref)
		k.Unlock()
		return kernel.MsgOK
	})
	if ref.Thread() != tp {
		t.Fatalf("expected the driver thread parked on the reference")
	}

	p.Interrupt(func() {
		k.LockFromISR()
		k.ResumeRefI(&ref, 42)
		k.UnlockFromISR()
	})
	if got != 42 {
		t.Fatalf("expected message 42, got %d", got)
	}
	if ref.Thread() != nil {
		t.Fatalf("expected the reference cleared")
	}
	k.Wait(tp)
}

func TestSuspendRefTimeout(t *testing.T) {
	k, p := boot(t, kernel.Config{})

	var ref kernel.ThreadRef
	tp := spawn(k, "driver", normal+1, func() kernel.Msg {
		k.Lock()
		msg := k.SuspendRefTimeoutS(&ref, 10)
		k.Unlock()
		return msg
	})
	if code := k.Wait(tp); code != kernel.MsgTimeout {
		t.Fatalf("expected timeout, got %s", code)
	}
	if ref.Thread() != nil {
		t.Fatalf("expected the reference cleared by the timeout")
	}
	if p.Now() != 10 {
		t.Fatalf("expected time 10, got %d", p.Now())
	}
}

func TestRegistrySnapshot(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	tp := spawn(k, "worker", normal+1, func() kernel.Msg {
		k.Sleep(10)
		return kernel.MsgOK
	})

	names := map[string]kernel.ThreadState{}
	for _, ti := range k.Threads() {
		names[ti.Name] = ti.State
	}
	if names["main"] != kernel.StateCurrent || names["idle"] != kernel.StateReady || names["worker"] != kernel.StateSleeping {
		t.Fatalf("unexpected registry %v", names)
	}
	if k.FindThread("worker") != tp {
		t.Fatalf("expected FindThread to return the worker")
	}

	k.Wait(tp)
	if k.FindThread("worker") != nil {
		t.Fatalf("expected an exited static thread to leave the registry")
	}
	if n := len(k.Threads()); n != 2 {
		t.Fatalf("expected 2 registered threads, got %d", n)
	}
}

func TestExitEventBroadcast(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	tp := spawn(k, "worker", normal-1, func() kernel.Msg {
		return kernel.MsgOK
	})

	var el kernel.EventListener
	tp.ExitEvent().Register(&el, 2)
	if got := k.WaitOne(kernel.AllEvents); got != kernel.EventID(2) {
		t.Fatalf("expected event 2, got %#x", got)
	}
	if tp.State() != kernel.StateFinal {
		t.Fatalf("expected the worker to have exited, got %s", tp.State())
	}
}

func TestWaitOnSelfHalts(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	var info kernel.HaltInfo
	k.SetHaltHandler(func(hi kernel.HaltInfo) { info = hi })

	reason := expectHalt(func() { k.Wait(k.Self()) })
	if reason != "invalid wait target" {
		t.Fatalf("expected invalid wait target halt, got %q", reason)
	}
	if info.Reason != reason || info.Name != "main" {
		t.Fatalf("unexpected halt info %+v", info)
	}
}
