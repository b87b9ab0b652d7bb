package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/hybrid-relay/internal/auth"
	"github.com/weiawesome/hybrid-relay/internal/config"
	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/hub"
	"github.com/weiawesome/hybrid-relay/internal/kafka"
	"github.com/weiawesome/hybrid-relay/internal/registry"
	"github.com/weiawesome/hybrid-relay/internal/relay"
	"github.com/weiawesome/hybrid-relay/internal/repository"
	"github.com/weiawesome/hybrid-relay/internal/service"
	"github.com/weiawesome/hybrid-relay/pkg/database"
	"github.com/weiawesome/hybrid-relay/pkg/jwt"
	"github.com/weiawesome/hybrid-relay/pkg/log"
	"github.com/weiawesome/hybrid-relay/pkg/middleware"
)

type testEnv struct {
	server   *httptest.Server
	tokens   *jwt.Manager
	registry registry.Registry
	owner    *domain.User
	viewer   *domain.User
	stream   *domain.Stream
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() { _ = database.Close(db) })

	users := repository.NewGormUserRepository(db)
	streams := repository.NewGormStreamRepository(db)
	codeSessions := repository.NewGormCodeSessionRepository(db)

	owner := &domain.User{Username: "alice", Email: "alice@example.com"}
	viewer := &domain.User{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, users.Create(ctx, owner))
	require.NoError(t, users.Create(ctx, viewer))
	stream := &domain.Stream{OwnerID: owner.ID, Title: "live"}
	require.NoError(t, streams.Create(ctx, stream))

	tokens, err := jwt.NewManager("test-secret", time.Hour, "hybrid")
	require.NoError(t, err)

	h := hub.NewHub(config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 64 * 1024,
	})
	reg := registry.NewMemoryRegistry(registry.PolicyOverwrite)
	svc := service.NewRealtimeService(h, relay.NewLocalRelay(h), reg, streams, codeSessions,
		kafka.NoopProducer{}, service.NewPollScheduler(), "test")
	t.Cleanup(svc.Stop)

	ws := NewWSHandler(h, svc, auth.NewAuthenticator(tokens, users), nil)
	r := gin.New()
	r.Use(log.GinMiddleware(zerolog.Nop()))
	NewHandler(h, reg, ws, middleware.NewAuthMiddleware(tokens), "test").RegisterRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testEnv{server: server, tokens: tokens, registry: reg, owner: owner, viewer: viewer, stream: stream}
}

func (e *testEnv) token(t *testing.T, user *domain.User) string {
	t.Helper()
	token, _, err := e.tokens.GenerateToken(user.ID, user.Username)
	require.NoError(t, err)
	return token
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
}

func (e *testEnv) dial(t *testing.T, user *domain.User) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL()+"?token="+e.token(t, user), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": eventType, "data": data}))
}

// await reads frames until one of eventType arrives.
func await(t *testing.T, conn *websocket.Conn, eventType string) domain.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env domain.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", eventType)
		if env.Type == eventType {
			return env
		}
	}
}

func TestWebSocket_RejectsUnauthenticatedHandshake(t *testing.T) {
	env := newTestEnv(t)
	stranger := &domain.User{ID: "ghost", Username: "ghost"}

	tests := []struct {
		name   string
		url    string
		header http.Header
	}{
		{"no token", env.wsURL(), nil},
		{"malformed token", env.wsURL() + "?token=abc", nil},
		{"wrong scheme", env.wsURL(), http.Header{"Authorization": {"Basic abc"}}},
		{"unknown user", env.wsURL() + "?token=" + env.token(t, stranger), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(tt.url, tt.header)
			if conn != nil {
				conn.Close()
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var body struct {
				Success bool `json:"success"`
				Error   struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
		})
	}
}

func TestWebSocket_BearerHeaderAndPing(t *testing.T) {
	env := newTestEnv(t)

	header := http.Header{"Authorization": {"Bearer " + env.token(t, env.viewer)}}
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL(), header)
	require.NoError(t, err)
	defer conn.Close()

	send(t, conn, domain.EventPing, nil)
	await(t, conn, domain.EventPong)

	send(t, conn, domain.EventChatMessage, map[string]string{"streamId": env.stream.ID, "message": " "})
	errEnv := await(t, conn, domain.EventError)
	var msg domain.ErrorMessage
	require.NoError(t, json.Unmarshal(errEnv.Data, &msg))
	assert.Equal(t, domain.ErrCodeBadRequest, msg.Code)
}

func TestWebSocket_BroadcastSignalAndDisconnect(t *testing.T) {
	env := newTestEnv(t)
	broadcaster := env.dial(t, env.owner)
	viewer := env.dial(t, env.viewer)

	send(t, broadcaster, domain.EventStartBroadcast, map[string]string{"streamId": env.stream.ID})
	require.Eventually(t, func() bool {
		entry, err := env.registry.Lookup(context.Background(), env.stream.ID)
		return err == nil && entry != nil
	}, 3*time.Second, 10*time.Millisecond)

	send(t, viewer, domain.EventJoinStream, map[string]string{"streamId": env.stream.ID})

	var joined domain.ViewerJoinedMessage
	require.NoError(t, json.Unmarshal(await(t, broadcaster, domain.EventViewerJoined).Data, &joined))
	assert.Equal(t, env.viewer.ID, joined.ViewerID)
	require.NotEmpty(t, joined.ViewerSocketID)

	send(t, broadcaster, domain.EventSignal, map[string]interface{}{
		"streamId": env.stream.ID,
		"targetId": joined.ViewerSocketID,
		"signal":   map[string]string{"type": "offer"},
	})

	var signal domain.SignalMessage
	require.NoError(t, json.Unmarshal(await(t, viewer, domain.EventSignal).Data, &signal))
	assert.Equal(t, env.owner.ID, signal.FromUserID)
	assert.JSONEq(t, `{"type":"offer"}`, string(signal.Signal))

	require.NoError(t, broadcaster.Close())

	var ended domain.BroadcastEndedMessage
	require.NoError(t, json.Unmarshal(await(t, viewer, domain.EventBroadcastEnded).Data, &ended))
	assert.Equal(t, env.stream.ID, ended.StreamID)

	entry, err := env.registry.Lookup(context.Background(), env.stream.ID)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestHTTP_StatusRoutes(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conn := env.dial(t, env.owner)
	send(t, conn, domain.EventStartBroadcast, map[string]string{"streamId": env.stream.ID})
	require.Eventually(t, func() bool {
		entry, err := env.registry.Lookup(context.Background(), env.stream.ID)
		return err == nil && entry != nil
	}, 3*time.Second, 10*time.Millisecond)

	get := func(path, token string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp = get("/api/v1/broadcasts/"+env.stream.ID, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := env.token(t, env.viewer)
	resp = get("/api/v1/broadcasts/"+env.stream.ID, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data registry.Entry `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, env.owner.ID, body.Data.BroadcasterUserID)
	assert.Equal(t, "test", body.Data.InstanceID)

	resp = get("/api/v1/broadcasts/unknown", token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = get("/api/v1/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		Data hub.Stats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Data.Connections)

	entry, err := env.registry.Lookup(context.Background(), env.stream.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	broadcastRoom := domain.BroadcastRoom(env.stream.ID)

	resp = get("/api/v1/rooms/"+broadcastRoom, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var room struct {
		Data struct {
			Room    string `json:"room"`
			Members int    `json:"members"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	assert.Equal(t, broadcastRoom, room.Data.Room)
	assert.Equal(t, 1, room.Data.Members)

	resp = get("/api/v1/connections/"+entry.BroadcasterConnectionID, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = get("/api/v1/connections/"+entry.BroadcasterConnectionID, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var connection struct {
		Data struct {
			ConnectionID string   `json:"connectionId"`
			Rooms        []string `json:"rooms"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&connection))
	assert.Equal(t, entry.BroadcasterConnectionID, connection.Data.ConnectionID)
	assert.ElementsMatch(t, []string{broadcastRoom, domain.UserRoom(env.owner.ID)}, connection.Data.Rooms)

	resp = get("/api/v1/connections/unknown", token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com/"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "https://APP.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.True(t, originChecker([]string{"*"})(req))
	assert.True(t, originChecker(nil)(req))
}
