package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/hybrid-relay/internal/config"
	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/hub"
	"github.com/weiawesome/hybrid-relay/pkg/pubsub"
)

func connect(h *hub.Hub, id string) *hub.Client {
	c := h.NewClient(id, nil, domain.NewSession(id, domain.Identity{UserID: "u-" + id, Username: id}))
	h.Register(c)
	return c
}

func receive(t *testing.T, c *hub.Client) string {
	t.Helper()
	select {
	case msg := <-c.Send:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID)
		return ""
	}
}

func assertSilent(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("client %s received unexpected %s", c.ID, msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalRelay(t *testing.T) {
	h := hub.NewHub(config.WebSocketConfig{})
	r := NewLocalRelay(h)
	a := connect(h, "a")
	b := connect(h, "b")
	h.JoinRoom(a, "stream:s1")
	h.JoinRoom(b, "stream:s1")

	require.NoError(t, r.ToRoom(context.Background(), "stream:s1", []byte(`{"n":1}`), "a"))
	assert.Equal(t, `{"n":1}`, receive(t, b))
	assertSilent(t, a)

	require.NoError(t, r.ToConnection(context.Background(), "a", []byte(`{"n":2}`)))
	assert.Equal(t, `{"n":2}`, receive(t, a))

	// Unknown targets are silently dropped.
	require.NoError(t, r.ToConnection(context.Background(), "ghost", []byte(`{}`)))
	assertSilent(t, a)
	assertSilent(t, b)
}

func TestClusterRelay_SpansInstances(t *testing.T) {
	bus := pubsub.NewMemoryPubSub()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA := hub.NewHub(config.WebSocketConfig{})
	hubB := hub.NewHub(config.WebSocketConfig{})
	relayA := NewClusterRelay(hubA, bus, "instance-a")
	relayB := NewClusterRelay(hubB, bus, "instance-b")
	require.NoError(t, relayA.Start(ctx))
	require.NoError(t, relayB.Start(ctx))
	defer relayA.Close()
	defer relayB.Close()

	a := connect(hubA, "a")
	b := connect(hubB, "b")
	hubA.JoinRoom(a, "stream:s1")
	hubB.JoinRoom(b, "stream:s1")

	require.NoError(t, relayA.ToRoom(ctx, "stream:s1", []byte(`{"type":"chat:message"}`), ""))
	assert.Equal(t, `{"type":"chat:message"}`, receive(t, a))
	assert.Equal(t, `{"type":"chat:message"}`, receive(t, b))
	assertSilent(t, a)

	require.NoError(t, relayA.ToConnection(ctx, "b", []byte(`{"type":"webrtc:signal"}`)))
	assert.Equal(t, `{"type":"webrtc:signal"}`, receive(t, b))

	require.NoError(t, relayB.ToRoom(ctx, "stream:s1", []byte(`{"x":1}`), "a"))
	assert.Equal(t, `{"x":1}`, receive(t, b))
	assertSilent(t, a)
}
