package kafka

import (
	"context"
	"time"
)

// BroadcastEvent is the lifecycle record published when a stream's
// broadcaster goes live or stops.
type BroadcastEvent struct {
	Type          string `json:"type"`
	StreamID      string `json:"stream_id"`
	BroadcasterID string `json:"broadcaster_id"`
	InstanceID    string `json:"instance_id,omitempty"`
	Reason        string `json:"reason,omitempty"` // "explicit" | "disconnect"
	Timestamp     int64  `json:"timestamp"`
}

// Event types
const (
	EventBroadcastStarted = "broadcast_started"
	EventBroadcastStopped = "broadcast_stopped"
)

// Stop reasons
const (
	ReasonExplicit   = "explicit"
	ReasonDisconnect = "disconnect"
)

// BroadcastEventProducer publishes broadcast lifecycle events.
type BroadcastEventProducer interface {
	ProduceBroadcastStarted(ctx context.Context, streamID, broadcasterID string) error
	ProduceBroadcastStopped(ctx context.Context, streamID, broadcasterID, reason string) error
	Close() error
}

func newBroadcastEvent(eventType, streamID, broadcasterID, instanceID, reason string, now time.Time) *BroadcastEvent {
	return &BroadcastEvent{
		Type:          eventType,
		StreamID:      streamID,
		BroadcasterID: broadcasterID,
		InstanceID:    instanceID,
		Reason:        reason,
		Timestamp:     now.Unix(),
	}
}
