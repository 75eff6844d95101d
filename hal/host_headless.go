//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Hz paces the steps in wall-clock time. Zero runs unpaced.
	Hz         int
	Ticks      uint64
	StepBudget int
	Host       HostConfig
}

// RunHeadless runs the OS without opening a window. Each step is expected
// to consume one kernel tick.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz < 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	if cfg.StepBudget <= 0 {
		cfg.StepBudget = 1
	}

	h := NewWithConfig(cfg.Host).(*hostHAL)
	defer h.port.Close()
	step := newApp(h)

	var tc <-chan time.Time
	if cfg.Hz > 0 {
		t := time.NewTicker(time.Second / time.Duration(cfg.Hz))
		defer t.Stop()
		tc = t.C
	}

	var tick uint64
	for {
		if tc != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tc:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		for i := 0; i < cfg.StepBudget && step != nil; i++ {
			if err := step(); err != nil {
				return err
			}
		}
		tick++
		if cfg.Ticks > 0 && tick >= cfg.Ticks {
			return nil
		}
	}
}
