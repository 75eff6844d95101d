// Package config loads the YAML configuration of the host build: kernel
// options, the simulated port and the demo workload.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"ember/kernel"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// Config is the whole configuration file.
type Config struct {
	Kernel KernelConfig `yaml:"kernel"`
	Port   PortConfig   `yaml:"port"`
	Demo   DemoConfig   `yaml:"demo"`
}

// KernelConfig mirrors kernel.Config.
type KernelConfig struct {
	Debug            bool   `yaml:"debug"`
	MainPriority     uint8  `yaml:"main_priority"`
	TimeQuantum      uint32 `yaml:"time_quantum"`
	TimeDelta        uint32 `yaml:"time_delta"`
	AlarmMaxInterval uint32 `yaml:"alarm_max_interval"`
	TraceSize        int    `yaml:"trace_size"`
	Dynamic          bool   `yaml:"dynamic"`
	RecursiveMutexes bool   `yaml:"recursive_mutexes"`
}

// PortConfig configures the simulated CPU and its host runner.
type PortConfig struct {
	// TickHz is the number of kernel ticks per wall-clock second. Zero runs
	// unpaced in headless mode.
	TickHz int    `yaml:"tick_hz"`
	Start  uint32 `yaml:"start"`
}

// DemoConfig sizes the demo workload.
type DemoConfig struct {
	Producers   int    `yaml:"producers"`
	MailboxSize int    `yaml:"mailbox_size"`
	Period      uint32 `yaml:"period"`
	// Ticks stops the host after that many ticks. Zero runs forever.
	Ticks uint64 `yaml:"ticks"`
	// Refresh is the monitor refresh period in ticks. Zero disables the
	// monitor thread.
	Refresh uint32 `yaml:"refresh"`
}

// Default returns the configuration used when no file is given. A file
// only overrides the keys it sets.
func Default() Config {
	return Config{
		Kernel: KernelConfig{
			Debug:     true,
			TraceSize: 256,
			Dynamic:   true,
		},
		Port: PortConfig{
			TickHz: 60,
		},
		Demo: DemoConfig{
			Producers:   2,
			MailboxSize: 4,
			Period:      10,
			Refresh:     16,
		},
	}
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result. Unknown
// keys are errors.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Kernel.MainPriority == uint8(kernel.IdlePriority):
		return fmt.Errorf("%w: kernel.main_priority %d is reserved for idle", ErrInvalid, c.Kernel.MainPriority)
	case c.Kernel.TraceSize < 0:
		return fmt.Errorf("%w: kernel.trace_size must not be negative, got %d", ErrInvalid, c.Kernel.TraceSize)
	case c.Port.TickHz < 0:
		return fmt.Errorf("%w: port.tick_hz must not be negative, got %d", ErrInvalid, c.Port.TickHz)
	case c.Demo.Producers < 1 || c.Demo.Producers > 8:
		return fmt.Errorf("%w: demo.producers must be 1..8, got %d", ErrInvalid, c.Demo.Producers)
	case c.Demo.MailboxSize < 1:
		return fmt.Errorf("%w: demo.mailbox_size must be positive, got %d", ErrInvalid, c.Demo.MailboxSize)
	case c.Demo.Period == 0:
		return fmt.Errorf("%w: demo.period must be positive", ErrInvalid)
	case !c.Kernel.Dynamic:
		return fmt.Errorf("%w: the demo needs kernel.dynamic", ErrInvalid)
	}
	return nil
}

// KernelOptions converts the kernel section to kernel options.
func (c Config) KernelOptions() kernel.Config {
	return kernel.Config{
		Debug:            c.Kernel.Debug,
		MainPriority:     kernel.Priority(c.Kernel.MainPriority),
		TimeQuantum:      kernel.Interval(c.Kernel.TimeQuantum),
		TimeDelta:        kernel.Interval(c.Kernel.TimeDelta),
		AlarmMaxInterval: kernel.Interval(c.Kernel.AlarmMaxInterval),
		TraceSize:        c.Kernel.TraceSize,
		Dynamic:          c.Kernel.Dynamic,
		RecursiveMutexes: c.Kernel.RecursiveMutexes,
	}
}
