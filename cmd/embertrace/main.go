// Command embertrace runs the demo headless for a number of ticks and writes
// the context switch trace as a timeline PNG and a YAML dump.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"ember/app"
	"ember/hal"
	"ember/internal/config"
	"ember/kernel"
	"ember/monitor"
)

func main() {
	var (
		path    string
		ticks   uint64
		chainAt uint64
		pngOut  string
		yamlOut string
		width   int
		height  int
		verbose bool
	)
	flag.StringVar(&path, "config", "", "YAML configuration file.")
	flag.Uint64Var(&ticks, "ticks", 200, "Ticks to run.")
	flag.Uint64Var(&chainAt, "chain-at", 0, "Run the inheritance chain at this tick (0 = never).")
	flag.StringVar(&pngOut, "png", "trace.png", "Timeline output path (empty to skip).")
	flag.StringVar(&yamlOut, "yaml", "", "YAML dump output path (- for stdout).")
	flag.IntVar(&width, "width", 1024, "Timeline width.")
	flag.IntVar(&height, "height", 320, "Timeline height.")
	flag.BoolVar(&verbose, "v", false, "Print the demo log to stderr.")
	flag.Parse()

	if err := run(path, ticks, chainAt, pngOut, yamlOut, width, height, verbose); err != nil {
		fmt.Fprintln(os.Stderr, "embertrace:", err)
		os.Exit(1)
	}
}

func run(path string, ticks, chainAt uint64, pngOut, yamlOut string, width, height int, verbose bool) error {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if cfg.Kernel.TraceSize == 0 {
		return fmt.Errorf("trace disabled: set kernel.trace_size")
	}

	var log io.Writer = io.Discard
	if verbose {
		log = os.Stderr
	}
	h := hal.NewWithConfig(hal.HostConfig{
		Log:  log,
		Port: hal.PortConfig{Start: kernel.Time(cfg.Port.Start)},
	})
	defer h.Port().Close()

	s, err := app.New(h, cfg)
	if err != nil {
		return err
	}
	for i := uint64(1); i <= ticks; i++ {
		if i == chainAt {
			s.Key(hal.KeyEvent{Code: hal.KeyEnter, Press: true})
		}
		if err := s.Step(); err != nil {
			if errors.Is(err, app.ErrQuit) {
				break
			}
			return err
		}
	}

	d := monitor.Snapshot(s.Kernel())
	if pngOut != "" {
		events, _ := s.Kernel().Trace()
		f, err := os.Create(pngOut)
		if err != nil {
			return err
		}
		err = monitor.WriteTimelinePNG(f, events, monitor.TimelineOptions{
			Width:  width,
			Height: height,
			End:    kernel.Time(d.Now),
		})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", pngOut, err)
		}
	}

	switch yamlOut {
	case "":
	case "-":
		return d.WriteYAML(os.Stdout)
	default:
		f, err := os.Create(yamlOut)
		if err != nil {
			return err
		}
		err = d.WriteYAML(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", yamlOut, err)
		}
	}
	return nil
}
