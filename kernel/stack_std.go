//go:build !tinygo

package kernel

import "runtime/debug"

// captureStack returns the stack of the halting thread's goroutine.
func captureStack() []byte { return debug.Stack() }
