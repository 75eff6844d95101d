package kernel

import "errors"

// ErrNoMemory is returned by dynamic thread creation when the allocator is
// exhausted.
var ErrNoMemory = errors.New("kernel: out of memory")

// Origin tells where a thread workspace came from and so how it is
// reclaimed.
type Origin uint8

const (
	// OriginStatic workspaces belong to the caller and are never freed.
	OriginStatic Origin = iota
	// OriginHeap workspaces go back to their Heap.
	OriginHeap
	// OriginPool workspaces go back to their Pool.
	OriginPool
)

func (o Origin) String() string {
	switch o {
	case OriginStatic:
		return "static"
	case OriginHeap:
		return "heap"
	case OriginPool:
		return "pool"
	default:
		return "unknown"
	}
}

// Heap is a variable-size workspace allocator.
type Heap interface {
	// Alloc returns a workspace with at least size bytes of stack, or nil.
	Alloc(size int) *Workspace
	Free(ws *Workspace)
}

// Pool is a fixed-size workspace allocator.
type Pool interface {
	// Alloc returns a workspace of ObjectSize bytes of stack, or nil.
	Alloc() *Workspace
	Free(ws *Workspace)
	ObjectSize() int
}
