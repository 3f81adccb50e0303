package gateway

import "sync/atomic"

// State is a viewer connection's lifecycle stage.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// allowed lists the legal transitions. Closing may be skipped when the
// transport fails outright.
var allowed = map[State][]State{
	StateConnecting: {StateOpen, StateClosed},
	StateOpen:       {StateClosing, StateClosed},
	StateClosing:    {StateClosed},
}

type connState struct {
	v atomic.Int32
}

func (c *connState) load() State { return State(c.v.Load()) }

// to moves to next if that is a legal transition from the current state.
func (c *connState) to(next State) bool {
	for {
		cur := c.load()
		legal := false
		for _, s := range allowed[cur] {
			if s == next {
				legal = true
				break
			}
		}
		if !legal {
			return false
		}
		if c.v.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}
