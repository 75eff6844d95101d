package kernel

import "strconv"

// Msg is the wakeup message delivered to a thread leaving a blocked state.
// It is also the type of thread exit codes.
type Msg int32

const (
	// MsgOK means the awaited condition happened.
	MsgOK Msg = 0
	// MsgTimeout means the timeout expired first.
	MsgTimeout Msg = -1
	// MsgReset means the object was reset while the thread waited on it.
	MsgReset Msg = -2
)

func (m Msg) String() string {
	switch m {
	case MsgOK:
		return "ok"
	case MsgTimeout:
		return "timeout"
	case MsgReset:
		return "reset"
	default:
		return "msg(" + strconv.Itoa(int(m)) + ")"
	}
}
