package connection

// State is the connection lifecycle state. Exactly one State exists per
// session and the Manager owns it exclusively.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}
