package client

type State uint8

const (
	Idle State = iota
	Connecting
	Connected
	Searching
	Matched
	Disconnected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Searching:
		return "searching"
	case Matched:
		return "matched"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
