package domain

import "time"

// StreamState is the lifecycle state of an ingestion session.
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamConnecting
	StreamStreaming
	StreamStopped
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamConnecting:
		return "connecting"
	case StreamStreaming:
		return "streaming"
	case StreamStopped:
		return "stopped"
	case StreamFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a session.
func (s StreamState) Terminal() bool {
	return s == StreamStopped || s == StreamFailed
}

// MarshalText renders the state by name.
func (s StreamState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StreamEnd is emitted exactly once when an ingestion session exits.
type StreamEnd struct {
	SessionID string      `json:"session_id"`
	Exchange  string      `json:"exchange"`
	Symbol    string      `json:"symbol"`
	State     StreamState `json:"state"`
	Reason    string      `json:"reason,omitempty"`
	Messages  uint64      `json:"messages"`
	Emitted   uint64      `json:"emitted"`
	At        time.Time   `json:"at"`
}
