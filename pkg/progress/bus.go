package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// Event is one progress update as sent to the client.
type Event struct {
	Status     string   `json:"status"`
	Node       string   `json:"node,omitempty"`
	Thought    string   `json:"thought,omitempty"`
	Answer     string   `json:"answer,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Attempts   int      `json:"attempts,omitempty"`
	Message    string   `json:"message,omitempty"`
}

func Thought(node, thought string) Event {
	return Event{Status: StatusProcessing, Node: node, Thought: thought}
}

func Complete(answer string, confidence float64, attempts int) Event {
	return Event{Status: StatusComplete, Answer: answer, Confidence: &confidence, Attempts: attempts}
}

func Failure(message string) Event {
	return Event{Status: StatusError, Message: message}
}

// Terminal reports whether ev ends a stream.
func (e Event) Terminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError
}

func Topic(sessionID string) string {
	return "rag.progress." + sessionID
}

// Bus fans per-session progress events from the pipeline goroutine to the
// transport handler. Publish blocks until the subscriber acknowledges, which
// keeps events in order.
type Bus struct {
	pubSub *gochannel.GoChannel
}

func NewBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            16,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
	}
}

func (b *Bus) Publish(sessionID string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubSub.Publish(Topic(sessionID), msg)
}

// Subscribe returns the session's events in publish order. The channel is
// closed when ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, Topic(sessionID))
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Ack() // malformed, drop
				continue
			}
			select {
			case out <- ev:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
