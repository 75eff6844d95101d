//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"ember/app"
	"ember/hal"
	"ember/internal/config"
	"ember/kernel"
)

func main() {
	var (
		path     string
		headless bool
		ticks    uint64
		hz       int
		scale    int
	)
	flag.StringVar(&path, "config", "", "YAML configuration file.")
	flag.BoolVar(&headless, "headless", false, "Run without a window.")
	flag.IntVar(&hz, "hz", -1, "Ticks per second (overrides port.tick_hz, 0 = unpaced headless).")
	flag.Uint64Var(&ticks, "ticks", 0, "Stop after N ticks in headless mode (overrides demo.ticks).")
	flag.IntVar(&scale, "scale", 2, "Window scale.")
	flag.Parse()

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	if hz >= 0 {
		cfg.Port.TickHz = hz
	}
	if ticks > 0 {
		cfg.Demo.Ticks = ticks
	}

	host := hal.HostConfig{Port: hal.PortConfig{Start: kernel.Time(cfg.Port.Start)}}
	var err error
	if headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err = hal.RunHeadless(ctx, app.Runner(cfg), hal.HeadlessConfig{
			Enabled: true,
			Hz:      cfg.Port.TickHz,
			Ticks:   cfg.Demo.Ticks,
			Host:    host,
		})
	} else {
		err = hal.RunWindow(app.Runner(cfg), hal.WindowConfig{
			TPS:   cfg.Port.TickHz,
			Scale: scale,
			Host:  host,
		})
	}
	if err != nil && !errors.Is(err, app.ErrQuit) && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
