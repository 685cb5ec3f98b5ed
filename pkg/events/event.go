package events

import "time"

const (
	TypeRAGAnswered = "RAG_ANSWERED"
	TypeRAGFailed   = "RAG_FAILED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "RAG_ANSWERED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Answered is emitted once a pipeline run finishes with an answer.
func Answered(sessionID, videoID string, timestamp, confidence float64, attempts int, passed bool) BaseEvent {
	return BaseEvent{
		Type: TypeRAGAnswered,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"video_id":   videoID,
			"timestamp":  timestamp,
			"confidence": confidence,
			"attempts":   attempts,
			"passed":     passed,
		},
		OccurredAt: time.Now(),
	}
}

// Failed is emitted when a run ends in an internal error.
func Failed(sessionID, videoID, reason string) BaseEvent {
	return BaseEvent{
		Type: TypeRAGFailed,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"video_id":   videoID,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}
