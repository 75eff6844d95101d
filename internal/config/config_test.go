package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ember/kernel"
)

func TestParseEmptyGivesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestParseOverridesOnlySetKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
kernel:
  time_quantum: 5
  trace_size: 64
demo:
  producers: 3
`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Kernel.TimeQuantum != 5 || cfg.Kernel.TraceSize != 64 || cfg.Demo.Producers != 3 {
		t.Fatalf("expected overrides applied, got %+v", cfg)
	}
	if !cfg.Kernel.Debug || cfg.Demo.MailboxSize != 4 || cfg.Port.TickHz != 60 {
		t.Fatalf("expected untouched keys to keep defaults, got %+v", cfg)
	}

	opts := cfg.KernelOptions()
	if opts.TimeQuantum != 5 || opts.TraceSize != 64 || !opts.Dynamic {
		t.Fatalf("unexpected kernel options %+v", opts)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("kernel:\n  quantum: 5\n")); err == nil {
		t.Fatalf("expected an error for an unknown key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"idle priority", func(c *Config) { c.Kernel.MainPriority = uint8(kernel.IdlePriority) }},
		{"negative trace", func(c *Config) { c.Kernel.TraceSize = -1 }},
		{"negative hz", func(c *Config) { c.Port.TickHz = -1 }},
		{"no producers", func(c *Config) { c.Demo.Producers = 0 }},
		{"too many producers", func(c *Config) { c.Demo.Producers = 9 }},
		{"empty mailbox", func(c *Config) { c.Demo.MailboxSize = 0 }},
		{"zero period", func(c *Config) { c.Demo.Period = 0 }},
		{"static kernel", func(c *Config) { c.Kernel.Dynamic = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.yaml")
	if err := os.WriteFile(path, []byte("port:\n  tick_hz: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port.TickHz != 0 {
		t.Fatalf("expected tick_hz 0, got %d", cfg.Port.TickHz)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
