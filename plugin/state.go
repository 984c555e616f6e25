package plugin

// State represents the lifecycle state of a plugin instance.
type State int

const (
	StateConstructed State = iota // Configured, Init not yet called
	StateActivating               // Init running
	StateActivated                // Init succeeded
	StateDisposed                 // Dispose ran, instance is spent
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// IsLive returns true while Init is running or has succeeded.
func (s State) IsLive() bool {
	return s == StateActivating || s == StateActivated
}

// IsTerminal returns true if the state cannot transition further.
func (s State) IsTerminal() bool {
	return s == StateDisposed
}
