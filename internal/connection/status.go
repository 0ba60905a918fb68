package connection

// Indicator is the connectivity surface exposed to the UI layer: a
// tri-state mode plus a human-readable label and a color class, all
// derived purely from the connection state.
type Indicator struct {
	Mode  string // "connecting", "open", or "degraded"
	Label string
	Color string
}

// IndicatorFor maps a connection state to its UI indicator.
func IndicatorFor(s State) Indicator {
	switch s {
	case StateConnecting:
		return Indicator{Mode: "connecting", Label: "Connecting to live updates", Color: "yellow"}
	case StateOpen:
		return Indicator{Mode: "open", Label: "Live updates active", Color: "green"}
	case StateFallback:
		return Indicator{Mode: "degraded", Label: "Live updates unavailable, polling instead", Color: "orange"}
	case StateClosed:
		return Indicator{Mode: "degraded", Label: "Disconnected", Color: "gray"}
	default:
		return Indicator{Mode: "degraded", Label: "Offline", Color: "gray"}
	}
}
