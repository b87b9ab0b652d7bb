package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one frame handed between relay instances. Key is the room or
// connection the frame is addressed to; Origin is the publishing instance.
type Event struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Origin    string          `json:"origin"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent wraps payload for publishing by origin.
func NewEvent(eventType, key, origin string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Key:       key,
		Origin:    origin,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// UnmarshalPayload decodes the payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// FromOrigin reports whether instanceID published the event.
func (e *Event) FromOrigin(instanceID string) bool {
	return e.Origin != "" && e.Origin == instanceID
}

// Publisher publishes events to the bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber receives events from the bus. Channels returned by Subscribe and
// SubscribePattern close when ctx ends or on Unsubscribe.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// PubSub is the bus shared by relay instances.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
