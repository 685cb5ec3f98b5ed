package nats

import (
	"strings"
	"time"

	"video-rag-be/pkg/events"
)

const (
	StreamName    = "RAG_EVENTS"
	subjectPrefix = "rag.events."
)

// envelope carries type and time alongside the payload so subscribers can
// rebuild the event without guessing from the subject.
type envelope struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

func Subject(eventType string) string {
	return subjectPrefix + strings.ToLower(eventType)
}

func wrap(e events.Event) envelope {
	return envelope{Type: e.EventType(), OccurredAt: e.Timestamp(), Data: e.Payload()}
}

func (e envelope) event() events.BaseEvent {
	return events.BaseEvent{Type: e.Type, Data: e.Data, OccurredAt: e.OccurredAt}
}
