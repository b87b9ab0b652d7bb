package pubsub

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Channel naming conventions for relay instances sharing one bus.
const (
	// ChannelRelayToCluster carries frames one instance hands to its peers.
	ChannelRelayToCluster = "relay:room:%s:to_cluster"

	// PatternRelayToCluster matches every relay channel.
	PatternRelayToCluster = "relay:room:*:to_cluster"

	// TopicRelayToCluster is the Kafka topic the relay channels map onto.
	TopicRelayToCluster = "relay-to-cluster"
)

// Event types for relay -> cluster communication.
const (
	EventRoomBroadcast = "room_broadcast"
	EventDirectSend    = "direct_send"
)

// RelayChannel returns the cluster channel for a room or connection key.
// Room names contain ':' themselves, so the key is flattened to keep the
// four-segment channel layout.
func RelayChannel(key string) string {
	return fmt.Sprintf(ChannelRelayToCluster, strings.ReplaceAll(key, ":", "_"))
}

// RoomBroadcastPayload asks every peer to fan a frame out to a local room.
type RoomBroadcastPayload struct {
	Room    string          `json:"room"`
	Exclude string          `json:"exclude,omitempty"`
	Message json.RawMessage `json:"message"`
}

// DirectSendPayload asks whichever peer holds the connection to deliver a frame.
type DirectSendPayload struct {
	ConnectionID string          `json:"connection_id"`
	Message      json.RawMessage `json:"message"`
}
