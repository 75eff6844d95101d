package app

import (
	"ember/hal"
	"ember/kernel"
	"ember/monitor"
)

// producer posts a sequence number every period, in fixed windows so a late
// wakeup does not shift the following ones.
func (s *System) producer(arg any) kernel.Msg {
	k := s.k
	id := uint32(arg.(int))
	period := kernel.Interval(s.cfg.Demo.Period)

	var seq uint32
	base := k.Now()
	for !k.ShouldTerminate() {
		base = k.SleepUntilWindowed(base, kernel.TimeAdd(base, period))
		if k.ShouldTerminate() {
			break
		}
		seq++
		switch s.mbox.Post(id<<24|seq&0xFFFFFF, period) {
		case kernel.MsgOK:
			s.update(func(st *Stats) { st.Produced++ })
		default:
			s.update(func(st *Stats) { st.Dropped++ })
		}
	}
	return kernel.MsgOK
}

// consumer drains the mailbox, one tick of work per message, and announces
// every full mailbox worth of messages as a batch.
func (s *System) consumer(any) kernel.Msg {
	batch := s.cfg.Demo.MailboxSize
	n := 0
	for {
		s.pauseMu.Lock()
		for s.paused {
			s.resumed.Wait()
		}
		s.pauseMu.Unlock()

		if _, msg := s.mbox.Fetch(kernel.Infinite); msg != kernel.MsgOK {
			continue
		}
		s.port.Advance(1)
		s.update(func(st *Stats) { st.Consumed++ })

		n++
		if n == batch {
			n = 0
			s.batch.Broadcast()
		}
	}
}

// reporter logs progress every few batches.
func (s *System) reporter(any) kernel.Msg {
	k := s.k
	var el kernel.EventListener
	s.batch.Register(&el, batchEvent)

	timeout := kernel.Interval(s.cfg.Demo.Period) * 10
	for {
		if k.WaitOneTimeout(kernel.EventID(batchEvent), timeout) == 0 {
			continue
		}
		var st Stats
		s.update(func(p *Stats) {
			p.Batches++
			st = *p
		})
		if st.Batches%16 == 0 {
			s.logf("batch %d: produced %d consumed %d dropped %d",
				st.Batches, st.Produced, st.Consumed, st.Dropped)
		}
	}
}

// sample is the periodic timer callback. It runs in interrupt context.
func (s *System) sample(any) {
	s.k.LockFromISR()
	s.due = s.sampler.Last()
	s.tick.SignalI()
	s.k.UnlockFromISR()
}

// sampleLoop measures how late it runs after each timer deadline.
func (s *System) sampleLoop(any) kernel.Msg {
	k := s.k
	for {
		if s.tick.Wait() != kernel.MsgOK {
			continue
		}
		k.Lock()
		now := kernel.Time(k.GetTimeStampI())
		jitter := kernel.TimeDiff(s.due, now)
		k.Unlock()

		s.update(func(st *Stats) {
			st.Samples++
			if jitter > st.MaxJitter {
				st.MaxJitter = jitter
			}
		})
	}
}

// chainLoop runs the inheritance chain each time the enter key interrupt
// resumes it.
func (s *System) chainLoop(any) kernel.Msg {
	k := s.k
	for {
		k.Lock()
		msg := k.SuspendRefS(&s.trigger)
		k.Unlock()
		if msg != kernel.MsgOK {
			continue
		}
		if err := s.runChain(); err != nil {
			s.logf("chain: %v", err)
		}
	}
}

// runChain builds a three thread inheritance chain on the heap:
//
//	low   holds A and sleeps
//	mid   holds B and blocks on A
//	high  blocks on B
//
// low reports the priority it was boosted to before releasing A. Waiting
// for all three returns their workspaces to the heap.
func (s *System) runChain() error {
	k := s.k
	var boost kernel.Priority

	low := func(any) kernel.Msg {
		s.chainA.Lock()
		k.Sleep(2)
		boost = k.Self().Priority()
		s.chainA.Unlock()
		return kernel.MsgOK
	}
	mid := func(any) kernel.Msg {
		s.chainB.Lock()
		s.chainA.Lock()
		s.chainA.Unlock()
		s.chainB.Unlock()
		return kernel.MsgOK
	}
	high := func(any) kernel.Msg {
		s.chainB.Lock()
		s.chainB.Unlock()
		return kernel.MsgOK
	}

	var threads []*kernel.Thread
	for _, c := range []struct {
		name string
		prio kernel.Priority
		fn   kernel.ThreadFunc
	}{
		{"pi-low", chainPriority, low},
		{"pi-mid", chainPriority + 5, mid},
		{"pi-high", chainPriority + 10, high},
	} {
		tp, err := k.CreateFromHeap(s.heap, chainStack, c.name, c.prio, c.fn, nil)
		if err != nil {
			for _, t := range threads {
				k.Wait(t)
			}
			return err
		}
		threads = append(threads, tp)
	}
	for _, tp := range threads {
		k.Wait(tp)
	}

	s.update(func(st *Stats) {
		st.ChainRuns++
		if boost > st.MaxBoost {
			st.MaxBoost = boost
		}
	})
	s.logf("chain: low boosted to %d", boost)
	return nil
}

// keyLoop handles the queued key presses.
func (s *System) keyLoop(any) kernel.Msg {
	for {
		ev, msg := s.keys.Fetch(kernel.Infinite)
		if msg != kernel.MsgOK {
			continue
		}
		s.update(func(st *Stats) { st.Keys++ })

		switch ev.Code {
		case hal.KeySpace:
			s.pauseMu.Lock()
			s.paused = !s.paused
			paused := s.paused
			if !paused {
				s.resumed.Broadcast()
			}
			s.pauseMu.Unlock()
			s.logf("consumer paused: %v", paused)
		case hal.KeyF1:
			s.mbox.Reset()
			s.update(func(st *Stats) { st.Resets++ })
			s.logf("mailbox reset")
		case hal.KeyF2:
			if s.sampler.IsArmed() {
				s.sampler.Reset()
				s.logf("sampler stopped")
			} else {
				s.sampler.SetContinuous(kernel.Interval(s.cfg.Demo.Period), s.sample, nil)
				s.logf("sampler started")
			}
		case hal.KeyF3:
			s.dumpTrace()
		case hal.KeyEscape:
			s.quit = true
		}
	}
}

// dumpTrace logs the most recent switches.
func (s *System) dumpTrace() {
	events, total := s.k.Trace()
	const tail = 8
	if len(events) > tail {
		events = events[len(events)-tail:]
	}
	s.logf("trace: %d switches", total)
	for _, ev := range events {
		s.logf("%s", monitor.FormatEvent(ev))
	}
}

// monitorLoop redraws the monitor at the configured rate.
func (s *System) monitorLoop(any) kernel.Msg {
	k := s.k
	every := kernel.Interval(s.cfg.Demo.Refresh)
	for {
		k.Sleep(every)
		if err := s.mon.Refresh(); err != nil {
			s.logf("monitor: %v", err)
		}
	}
}
