package kernel_test

import (
	"testing"

	"ember/kernel"
)

func TestReadyListPriorityOrder(t *testing.T) {
	orders := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
		{1, 3, 0, 4, 2},
	}
	for _, order := range orders {
		k, _ := boot(t, kernel.Config{})

		var out []byte
		var tps []*kernel.Thread
		for _, i := range order {
			letter := byte('A' + i)
			prio := normal - 1 - kernel.Priority(i)
			tps = append(tps, spawn(k, string(letter), prio, func() kernel.Msg {
				out = append(out, letter)
				return kernel.MsgOK
			}))
		}
		for _, tp := range tps {
			k.Wait(tp)
		}
		expectString(t, "run order", "ABCDE", string(out))
	}
}

func TestEqualPriorityFIFO(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	var out []byte
	var tps []*kernel.Thread
	for _, name := range []string{"A", "B", "C"} {
		name := name
		tps = append(tps, spawn(k, name, normal-1, func() kernel.Msg {
			out = append(out, name...)
			return kernel.MsgOK
		}))
	}
	for _, tp := range tps {
		k.Wait(tp)
	}
	expectString(t, "run order", "ABC", string(out))
}

func TestHigherPriorityRunsOnCreate(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	ran := false
	tp := spawn(k, "hi", normal+1, func() kernel.Msg {
		ran = true
		return 7
	})
	if !ran {
		t.Fatalf("expected the more urgent thread to run before create returned")
	}
	if code := k.Wait(tp); code != 7 {
		t.Fatalf("expected exit code 7, got %d", code)
	}
}

func TestSleepAdvancesVirtualTime(t *testing.T) {
	k, p := boot(t, kernel.Config{})

	k.Sleep(100)
	if p.Now() != 100 {
		t.Fatalf("expected time 100, got %d", p.Now())
	}
	k.SleepUntil(250)
	if p.Now() != 250 {
		t.Fatalf("expected time 250, got %d", p.Now())
	}
	k.SleepUntil(250)
	if p.Now() != 250 {
		t.Fatalf("expected SleepUntil(now) to return at once, got time %d", p.Now())
	}
}

func TestSleepUntilWindowed(t *testing.T) {
	k, p := boot(t, kernel.Config{})

	prev := k.Now()
	for i := 0; i < 3; i++ {
		p.Advance(3)
		prev = k.SleepUntilWindowed(prev, kernel.TimeAdd(prev, 10))
	}
	if p.Now() != 30 {
		t.Fatalf("expected time 30, got %d", p.Now())
	}

	// Already past the window: no sleep.
	p.Advance(15)
	k.SleepUntilWindowed(prev, kernel.TimeAdd(prev, 10))
	if p.Now() != 45 {
		t.Fatalf("expected time 45, got %d", p.Now())
	}
}

func TestTimerWakeupPreemptsRunningThread(t *testing.T) {
	k, p := boot(t, kernel.Config{})

	var woke kernel.Time
	tp := spawn(k, "sleeper", normal+1, func() kernel.Msg {
		k.Sleep(10)
		woke = k.Now()
		return kernel.MsgOK
	})

	p.Advance(25)
	if woke != 10 {
		t.Fatalf("expected the sleeper to preempt main at 10, got %d", woke)
	}
	k.Wait(tp)
}

func TestRoundRobinQuantum(t *testing.T) {
	k, p := boot(t, kernel.Config{TimeQuantum: 5})

	var out []byte
	worker := func(name byte) func() kernel.Msg {
		return func() kernel.Msg {
			for i := 0; i < 10; i++ {
				out = append(out, name)
				p.Advance(1)
			}
			return kernel.MsgOK
		}
	}
	a := spawn(k, "A", normal-1, worker('A'))
	b := spawn(k, "B", normal-1, worker('B'))
	k.Wait(a)
	k.Wait(b)

	expectString(t, "slices", "AAAAABBBBBAAAAABBBBB", string(out))
}

func TestNoRoundRobinWithoutQuantum(t *testing.T) {
	k, p := boot(t, kernel.Config{})

	var out []byte
	worker := func(name byte) func() kernel.Msg {
		return func() kernel.Msg {
			for i := 0; i < 6; i++ {
				out = append(out, name)
				p.Advance(1)
			}
			return kernel.MsgOK
		}
	}
	a := spawn(k, "A", normal-1, worker('A'))
	b := spawn(k, "B", normal-1, worker('B'))
	k.Wait(a)
	k.Wait(b)

	expectString(t, "run order", "AAAAAABBBBBB", string(out))
}

func TestYield(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	var out []byte
	worker := func(name byte) func() kernel.Msg {
		return func() kernel.Msg {
			out = append(out, name)
			k.Yield()
			out = append(out, name)
			return kernel.MsgOK
		}
	}
	a := spawn(k, "A", normal-1, worker('A'))
	b := spawn(k, "B", normal-1, worker('B'))
	k.Wait(a)
	k.Wait(b)

	expectString(t, "run order", "ABAB", string(out))
}

func TestSetPriorityReschedules(t *testing.T) {
	k, _ := boot(t, kernel.Config{})

	ran := false
	tp := spawn(k, "low", normal-10, func() kernel.Msg {
		ran = true
		return kernel.MsgOK
	})

	old := k.SetPriority(normal - 20)
	if !ran {
		t.Fatalf("expected the other thread to run once main dropped below it")
	}
	if old != normal {
		t.Fatalf("expected old priority %d, got %d", normal, old)
	}
	if got := k.Self().Priority(); got != normal-20 {
		t.Fatalf("expected priority %d, got %d", normal-20, got)
	}
	k.Wait(tp)
}

func TestTraceRecordsSwitches(t *testing.T) {
	k, _ := boot(t, kernel.Config{TraceSize: 4})

	for i := 0; i < 3; i++ {
		k.Sleep(5)
	}

	events, total := k.Trace()
	// Each sleep is main to idle and back.
	if total != 6 {
		t.Fatalf("expected 6 switches, got %d", total)
	}
	if len(events) != 4 {
		t.Fatalf("expected the last 4 switches, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Time < events[i-1].Time {
			t.Fatalf("trace out of order: %+v", events)
		}
	}
	last := events[len(events)-1]
	if last.FromName != "idle" || last.ToName != "main" || last.Time != 15 {
		t.Fatalf("unexpected last switch %+v", last)
	}
	if first := events[0]; first.FromName != "main" || first.State != kernel.StateSleeping {
		t.Fatalf("unexpected first buffered switch %+v", first)
	}
}
