package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/hybrid-relay/internal/hub"
	"github.com/weiawesome/hybrid-relay/internal/registry"
	"github.com/weiawesome/hybrid-relay/pkg/log"
	"github.com/weiawesome/hybrid-relay/pkg/middleware"
	"github.com/weiawesome/hybrid-relay/pkg/response"
)

// Handler serves the HTTP status API next to the WebSocket endpoint.
type Handler struct {
	hub            *hub.Hub
	registry       registry.Registry
	ws             *WSHandler
	authMiddleware *middleware.AuthMiddleware
	instanceID     string
}

// NewHandler creates a new HTTP handler.
func NewHandler(h *hub.Hub, reg registry.Registry, ws *WSHandler, authMiddleware *middleware.AuthMiddleware, instanceID string) *Handler {
	return &Handler{
		hub:            h,
		registry:       reg,
		ws:             ws,
		authMiddleware: authMiddleware,
		instanceID:     instanceID,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.ws.HandleWebSocket)

	api := r.Group("/api/v1")
	{
		api.GET("/stats", h.Stats)
		api.GET("/rooms/:room", h.GetRoom)
		api.GET("/broadcasts/:streamId", h.authMiddleware.RequireAuth(), h.GetBroadcast)
		api.GET("/connections/:connId", h.authMiddleware.RequireAuth(), h.GetConnection)
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok", "instanceId": h.instanceID})
}

// Stats reports this instance's connection and room counts.
func (h *Handler) Stats(c *gin.Context) {
	response.Success(c, h.hub.Stats())
}

// GetRoom reports how many connections of this instance are in a room.
func (h *Handler) GetRoom(c *gin.Context) {
	room := c.Param("room")
	response.Success(c, gin.H{"room": room, "members": h.hub.RoomSize(room)})
}

// GetConnection lists the rooms of a connection held by this instance.
func (h *Handler) GetConnection(c *gin.Context) {
	connID := c.Param("connId")
	if !h.hub.HasClient(connID) {
		response.NotFound(c, "Connection not found on this instance")
		return
	}
	response.Success(c, gin.H{"connectionId": connID, "rooms": h.hub.RoomsOf(connID)})
}

// GetBroadcast returns the active broadcaster of a stream.
func (h *Handler) GetBroadcast(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	streamID := c.Param("streamId")
	entry, err := h.registry.Lookup(ctx, streamID)
	if err != nil {
		l.Error().Err(err).
			Str(log.FieldStreamID, streamID).
			Str(log.FieldUserID, middleware.GetUserID(c)).
			Msg("failed to look up broadcaster")
		response.InternalError(c, "failed to look up broadcaster")
		return
	}
	if entry == nil {
		response.NotFound(c, "No active broadcaster for this stream")
		return
	}

	response.Success(c, entry)
}
