package connection

import (
	"fmt"

	"github.com/srg/btpick/internal/device"
)

// StateKind enumerates the connection lifecycle states
type StateKind int

const (
	Idle StateKind = iota
	Connecting
	Connected
	Failed
)

func (k StateKind) String() string {
	switch k {
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// State is the live connection state. Target is unset for Idle;
// Reason is set only for Failed and holds the platform text verbatim.
type State struct {
	Kind   StateKind
	Target device.Address
	Reason string
}

// String renders the state as Idle, Connecting(addr), Connected(addr) or Failed(addr, "reason")
func (s State) String() string {
	switch s.Kind {
	case Idle:
		return s.Kind.String()
	case Failed:
		return fmt.Sprintf("%s(%s, %q)", s.Kind, s.Target, s.Reason)
	default:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Target)
	}
}

// Busy reports whether a new connection attempt would be rejected outright
func (s State) Busy() bool {
	return s.Kind == Connecting || s.Kind == Connected
}
