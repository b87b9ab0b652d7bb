package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/hybrid-relay/internal/auth"
	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/hub"
	"github.com/weiawesome/hybrid-relay/internal/service"
	"github.com/weiawesome/hybrid-relay/pkg/log"
	"github.com/weiawesome/hybrid-relay/pkg/response"
)

// WSHandler authenticates handshakes and hands upgraded connections to the hub.
type WSHandler struct {
	hub      *hub.Hub
	service  service.RealtimeService
	auth     *auth.Authenticator
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler. An empty allowedOrigins
// list, or one containing "*", accepts every origin.
func NewWSHandler(h *hub.Hub, svc service.RealtimeService, authenticator *auth.Authenticator, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		auth:    authenticator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

// HandleWebSocket rejects unauthenticated handshakes with 401 before any
// upgrade, then registers the connection and starts its pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	identity, err := h.auth.Authenticate(ctx, c.Request)
	if err != nil {
		if auth.IsUnauthenticated(err) {
			l.Warn().Err(err).Msg("websocket handshake rejected")
			response.Unauthorized(c, err.Error())
			return
		}
		l.Error().Err(err).Msg("failed to authenticate websocket handshake")
		response.InternalError(c, "failed to authenticate")
		return
	}
	c.Set(log.FieldUserID, identity.UserID)
	c.Set(log.FieldUsername, identity.Username)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := h.hub.NewClient(clientID, conn, domain.NewSession(clientID, identity))

	// The request context ends when this handler returns; the connection
	// outlives it.
	connCtx := log.WithConnection(context.WithoutCancel(ctx), clientID, identity.UserID, identity.Username)

	client.SetDisconnectHandler(func(c *hub.Client) {
		h.service.HandleDisconnect(connCtx, c)
	})

	h.hub.Register(client)

	cl := log.Ctx(connCtx)
	cl.Info().Msg("user connected")

	started := h.hub.StartPumps(client, func(c *hub.Client, raw []byte) {
		h.service.HandleMessage(connCtx, c, raw)
	})
	if !started {
		cl.Warn().Msg("connection refused, relay is shutting down")
	}
}
