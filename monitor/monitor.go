// Package monitor shows the state of a running kernel on a framebuffer: a
// status header, a thread table and a scrolling console of context
// switches and log lines. It also renders the trace buffer as a timeline
// image.
package monitor

import (
	"fmt"

	"ember/hal"
	"ember/internal/buildinfo"
	"ember/kernel"
)

// tableRows is the number of thread table rows below the header.
const tableRows = 12

// Monitor draws kernel snapshots. Refresh must run on a kernel thread.
type Monitor struct {
	k       *kernel.Kernel
	fb      hal.Framebuffer
	table   *region
	console *Console
	seen    uint64
}

// New returns a monitor of k drawing on fb. fb may be nil, in which case
// Refresh only tracks the trace position.
func New(k *kernel.Kernel, fb hal.Framebuffer) *Monitor {
	m := &Monitor{k: k, fb: fb}
	top := (tableRows + 1) * fontHeight
	height := 0
	if fb != nil {
		height = fb.Height()
		fb.ClearRGB(bgColor.R, bgColor.G, bgColor.B)
	}
	m.table = newRegion(fb, 0, top)
	m.console = NewConsole(fb, top+2, height-top-2)
	return m
}

// Console returns the scrolling console, for mirroring log lines.
func (m *Monitor) Console() *Console { return m.console }

// Refresh redraws the header and thread table, copies the switches
// recorded since the previous refresh to the console, and presents the
// framebuffer.
func (m *Monitor) Refresh() error {
	threads := m.k.Threads()
	events, total := m.k.Trace()

	writeLine(m.table, 0, fmt.Sprintf("ember %s  t=%d  sw=%d  thr=%d",
		buildinfo.Short(), m.k.Now(), total, len(threads)), accentColor)
	for i := 0; i < tableRows; i++ {
		line := ""
		if i < len(threads) {
			line = formatThread(threads[i])
		}
		writeLine(m.table, i+1, line, fgColor)
	}

	fresh := total - m.seen
	if fresh > uint64(len(events)) {
		m.console.WriteLineString(fmt.Sprintf("... %d switches dropped", fresh-uint64(len(events))))
		fresh = uint64(len(events))
	}
	for _, ev := range events[len(events)-int(fresh):] {
		m.console.WriteLineString(FormatEvent(ev))
	}
	m.seen = total

	if m.fb == nil {
		return nil
	}
	return m.fb.Present()
}

func formatThread(ti kernel.ThreadInfo) string {
	prio := fmt.Sprintf("%d", ti.Priority)
	if ti.Priority != ti.RealPriority {
		prio = fmt.Sprintf("%d<%d", ti.RealPriority, ti.Priority)
	}
	return fmt.Sprintf("%3d %-10s %-7s %-8s %s", ti.ID, ti.Name, prio, ti.State, ti.Origin)
}

// FormatEvent renders one context switch as a log line.
func FormatEvent(ev kernel.TraceEvent) string {
	return fmt.Sprintf("%8d %s -> %s (%s)", ev.Time, ev.FromName, ev.ToName, ev.State)
}
