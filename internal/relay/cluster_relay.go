package relay

import (
	"context"
	"fmt"

	"github.com/weiawesome/hybrid-relay/internal/hub"
	"github.com/weiawesome/hybrid-relay/pkg/log"
	"github.com/weiawesome/hybrid-relay/pkg/pubsub"
)

// ClusterRelay delivers locally and forwards frames to the other relay
// instances over the pub/sub bus, so rooms and connection ids span the
// cluster.
type ClusterRelay struct {
	hub        *hub.Hub
	bus        pubsub.PubSub
	instanceID string
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewClusterRelay creates a relay that shares bus with its peers.
func NewClusterRelay(h *hub.Hub, bus pubsub.PubSub, instanceID string) *ClusterRelay {
	return &ClusterRelay{
		hub:        h,
		bus:        bus,
		instanceID: instanceID,
	}
}

// ToRoom fans out locally and publishes the frame for peers.
func (r *ClusterRelay) ToRoom(ctx context.Context, room string, data []byte, exclude string) error {
	r.hub.BroadcastToRoom(room, data, exclude)

	event, err := pubsub.NewEvent(pubsub.EventRoomBroadcast, room, r.instanceID, &pubsub.RoomBroadcastPayload{
		Room:    room,
		Exclude: exclude,
		Message: data,
	})
	if err != nil {
		return fmt.Errorf("failed to create room broadcast event: %w", err)
	}
	if err := r.bus.Publish(ctx, pubsub.RelayChannel(room), event); err != nil {
		return fmt.Errorf("failed to publish room broadcast: %w", err)
	}
	return nil
}

// ToConnection delivers locally when possible, otherwise publishes the frame
// for whichever peer holds the connection.
func (r *ClusterRelay) ToConnection(ctx context.Context, connID string, data []byte) error {
	if r.hub.SendToClient(connID, data) {
		return nil
	}

	event, err := pubsub.NewEvent(pubsub.EventDirectSend, connID, r.instanceID, &pubsub.DirectSendPayload{
		ConnectionID: connID,
		Message:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to create direct send event: %w", err)
	}
	if err := r.bus.Publish(ctx, pubsub.RelayChannel(connID), event); err != nil {
		return fmt.Errorf("failed to publish direct send: %w", err)
	}
	return nil
}

// Start subscribes to frames published by peers.
func (r *ClusterRelay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	eventCh, err := r.bus.SubscribePattern(ctx, pubsub.PatternRelayToCluster)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to cluster relay: %w", err)
	}

	r.done = make(chan struct{})
	go r.handleClusterEvents(ctx, eventCh)

	l := log.L()
	l.Info().Str(log.FieldInstance, r.instanceID).Msg("cluster relay started")
	return nil
}

// Close stops the subscription. The bus itself is closed by its owner.
func (r *ClusterRelay) Close() error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	return nil
}

func (r *ClusterRelay) handleClusterEvents(ctx context.Context, eventCh <-chan *pubsub.Event) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			r.processClusterEvent(event)
		}
	}
}

func (r *ClusterRelay) processClusterEvent(event *pubsub.Event) {
	if event.FromOrigin(r.instanceID) {
		return
	}
	l := log.L()

	switch event.Type {
	case pubsub.EventRoomBroadcast:
		var payload pubsub.RoomBroadcastPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			l.Warn().Err(err).Msg("failed to unmarshal room broadcast")
			return
		}
		r.hub.BroadcastToRoom(payload.Room, payload.Message, payload.Exclude)

	case pubsub.EventDirectSend:
		var payload pubsub.DirectSendPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			l.Warn().Err(err).Msg("failed to unmarshal direct send")
			return
		}
		r.hub.SendToClient(payload.ConnectionID, payload.Message)

	default:
		l.Debug().Str("type", event.Type).Msg("ignoring cluster event")
	}
}

var _ Relay = (*ClusterRelay)(nil)
