package kernel

import "math"

// Time is an absolute system time in ticks. It wraps around.
type Time uint32

// Interval is a time span in ticks.
type Interval uint32

const (
	// Immediate is the zero interval: blocking calls poll and return MsgTimeout
	// instead of sleeping. It is not a valid timer delay.
	Immediate Interval = 0

	// Infinite makes blocking calls wait forever. As a timer delay it is just
	// the largest representable interval.
	Infinite Interval = math.MaxUint32
)

// TimeAdd returns t advanced by d, wrapping.
func TimeAdd(t Time, d Interval) Time {
	return t + Time(d)
}

// TimeDiff returns the interval from start to end, wrapping.
func TimeDiff(start, end Time) Interval {
	return Interval(end - start)
}

// IsTimeWithin reports whether t lies in the half-open window [start, end).
// The window may wrap; start == end is the empty window.
func IsTimeWithin(t, start, end Time) bool {
	return TimeDiff(start, t) < TimeDiff(start, end)
}
