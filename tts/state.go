package tts

// StateType represents the playback state of the engine.
type StateType int

const (
	// StateIdle indicates no playback session is active. Idle is both the
	// initial state and the terminal state of every session.
	StateIdle StateType = iota
	// StatePlaying indicates blocks are being dispatched and spoken.
	StatePlaying
	// StatePaused indicates playback is suspended at a recorded block.
	StatePaused
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// IsActive returns true if a playback session is in progress.
func (s StateType) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}
