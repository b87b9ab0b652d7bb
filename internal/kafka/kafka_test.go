package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastEvent_JSON(t *testing.T) {
	at := time.Unix(1700000000, 0)
	event := newBroadcastEvent(EventBroadcastStopped, "s1", "u1", "node-a", ReasonDisconnect, at)

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "broadcast_stopped",
		"stream_id": "s1",
		"broadcaster_id": "u1",
		"instance_id": "node-a",
		"reason": "disconnect",
		"timestamp": 1700000000
	}`, string(raw))

	started := newBroadcastEvent(EventBroadcastStarted, "s1", "u1", "", "", at)
	raw, err = json.Marshal(started)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "reason")
	assert.NotContains(t, string(raw), "instance_id")
}

func TestNew_DisabledIsNoop(t *testing.T) {
	p, err := New(false, "", "broadcast-events", 1, "node-a")
	require.NoError(t, err)
	assert.IsType(t, NoopProducer{}, p)

	ctx := context.Background()
	assert.NoError(t, p.ProduceBroadcastStarted(ctx, "s1", "u1"))
	assert.NoError(t, p.ProduceBroadcastStopped(ctx, "s1", "u1", ReasonExplicit))
	assert.NoError(t, p.Close())
}
