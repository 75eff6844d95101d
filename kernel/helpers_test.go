package kernel_test

import (
	"testing"

	"ember/hal"
	"ember/kernel"
)

const normal = kernel.NormalPriority

// boot starts a kernel on a simulated port with contract checks on. The
// test goroutine becomes the main thread.
func boot(t *testing.T, cfg kernel.Config) (*kernel.Kernel, *hal.SimPort) {
	t.Helper()
	cfg.Debug = true
	p := hal.NewSimPort(hal.PortConfig{})
	k := kernel.New(p, cfg)
	t.Cleanup(p.Close)
	return k, p
}

// spawn creates and starts a thread running fn in a fresh workspace.
func spawn(k *kernel.Kernel, name string, prio kernel.Priority, fn func() kernel.Msg) *kernel.Thread {
	ws := kernel.NewWorkspace(kernel.MinStackSize)
	return k.CreateStatic(ws, name, prio, func(any) kernel.Msg { return fn() }, nil)
}

func expectString(t *testing.T, what, want, got string) {
	t.Helper()
	if got != want {
		t.Fatalf("expected %s %q, got %q", what, want, got)
	}
}

// expectHalt runs fn on the main thread and returns the halt reason it
// raised, or "".
func expectHalt(fn func()) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*kernel.Fault)
			if !ok {
				panic(r)
			}
			reason = f.Reason
		}
	}()
	fn()
	return ""
}
