package monitor

import (
	"io"

	"ember/kernel"

	"gopkg.in/yaml.v3"
)

// Dump is a YAML friendly snapshot of the registry and the switch trace.
type Dump struct {
	Now      uint32       `yaml:"now"`
	Switches uint64       `yaml:"switches"`
	Dropped  uint64       `yaml:"dropped,omitempty"`
	Threads  []DumpThread `yaml:"threads"`
	Trace    []DumpEvent  `yaml:"trace"`
}

// DumpThread is one registry entry.
type DumpThread struct {
	ID       uint32 `yaml:"id"`
	Name     string `yaml:"name"`
	Priority uint8  `yaml:"priority"`
	Real     uint8  `yaml:"real_priority,omitempty"`
	State    string `yaml:"state"`
	Origin   string `yaml:"origin"`
	Waiters  int    `yaml:"waiters,omitempty"`
}

// DumpEvent is one context switch.
type DumpEvent struct {
	Time  uint32 `yaml:"t"`
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	State string `yaml:"state"`
}

// Snapshot captures k.
func Snapshot(k *kernel.Kernel) Dump {
	k.Lock()
	now := k.Now()
	threads := k.ThreadsI()
	events, total := k.TraceI()
	k.Unlock()

	d := Dump{
		Now:      uint32(now),
		Switches: total,
		Dropped:  total - uint64(len(events)),
	}
	for _, ti := range threads {
		dt := DumpThread{
			ID:       uint32(ti.ID),
			Name:     ti.Name,
			Priority: uint8(ti.Priority),
			State:    ti.State.String(),
			Origin:   ti.Origin.String(),
			Waiters:  ti.Waiters,
		}
		if ti.RealPriority != ti.Priority {
			dt.Real = uint8(ti.RealPriority)
		}
		d.Threads = append(d.Threads, dt)
	}
	for _, ev := range events {
		d.Trace = append(d.Trace, DumpEvent{
			Time:  uint32(ev.Time),
			From:  ev.FromName,
			To:    ev.ToName,
			State: ev.State.String(),
		})
	}
	return d
}

// WriteYAML encodes d.
func (d Dump) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}
