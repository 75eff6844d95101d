package app

import (
	"ember/hal"
	"ember/kernel"
	"ember/monitor"
)

// installHaltHandler reports a kernel halt on the log and paints it over
// the display. The panic that follows stops the system.
func installHaltHandler(h hal.HAL, k *kernel.Kernel) {
	k.SetHaltHandler(func(info kernel.HaltInfo) {
		if l := h.Logger(); l != nil {
			for _, line := range monitor.HaltLines(info) {
				l.WriteLineString(line)
			}
		}
		if disp := h.Display(); disp != nil {
			monitor.DrawHalt(disp.Framebuffer(), info)
		}
	})
}
