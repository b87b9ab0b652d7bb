package hub

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/hybrid-relay/internal/config"
	"github.com/weiawesome/hybrid-relay/internal/domain"
	pkglog "github.com/weiawesome/hybrid-relay/pkg/log"
)

const defaultSendBuffer = 256

// DisconnectHandler is called when a client disconnects.
type DisconnectHandler func(*Client)

// Client represents a connected WebSocket client.
type Client struct {
	ID                string
	Hub               *Hub
	Conn              *websocket.Conn
	Send              chan []byte
	Session           *domain.Session
	disconnectHandler DisconnectHandler

	// rooms is guarded by Hub.mu.
	rooms     map[string]struct{}
	closeOnce sync.Once
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Hub manages all WebSocket connections and their room memberships on this
// instance. Delivery never blocks: a client whose send buffer is full is
// evicted.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]*Client // roomID -> clientID -> client
	evict   chan *Client
	mu      sync.RWMutex
	config  config.WebSocketConfig

	// pumps counts running read pumps; draining refuses new ones.
	pumps    sync.WaitGroup
	pumpsMu  sync.Mutex
	draining bool
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		evict:   make(chan *Client, 64),
		config:  cfg,
	}
}

// NewClient creates a client bound to this hub. conn may be nil for clients
// that are never pumped.
func (h *Hub) NewClient(id string, conn *websocket.Conn, session *domain.Session) *Client {
	size := h.config.SendBuffer
	if size <= 0 {
		size = defaultSendBuffer
	}
	return &Client{
		ID:      id,
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, size),
		Session: session,
		rooms:   make(map[string]struct{}),
	}
}

// Run evicts slow clients until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	l := pkglog.L()
	for {
		select {
		case client := <-h.evict:
			l.Warn().Str(pkglog.FieldConnID, client.ID).Msg("send buffer full, evicting client")
			if client.Conn != nil {
				client.Conn.Close()
			} else {
				h.Unregister(client)
			}

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Register adds a client to the hub and to its user room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	if client.Session != nil {
		h.joinLocked(client, domain.UserRoom(client.Session.UserID()))
	}
	h.mu.Unlock()

	l := pkglog.L()
	l.Info().Str(pkglog.FieldConnID, client.ID).Msg("client registered")
}

// Unregister removes a client from the hub and all of its rooms, then closes
// its send channel. It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		for roomID := range client.rooms {
			h.leaveLocked(client, roomID)
		}
		delete(h.clients, client.ID)
	}
	h.mu.Unlock()

	client.closeOnce.Do(func() {
		h.mu.Lock()
		close(client.Send)
		h.mu.Unlock()

		l := pkglog.L()
		l.Info().Str(pkglog.FieldConnID, client.ID).Msg("client unregistered")
	})
}

// JoinRoom adds a client to a room.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	h.joinLocked(client, roomID)
	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnID, client.ID).Str(pkglog.FieldRoom, roomID).Msg("client joined room")
}

// LeaveRoom removes a client from a room.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(client, roomID)
	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnID, client.ID).Str(pkglog.FieldRoom, roomID).Msg("client left room")
}

// LeaveRoomByID removes the client with clientID from a room, if connected here.
func (h *Hub) LeaveRoomByID(clientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[clientID]; ok {
		h.leaveLocked(client, roomID)
	}
}

func (h *Hub) joinLocked(client *Client, roomID string) {
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
	client.rooms[roomID] = struct{}{}
}

func (h *Hub) leaveLocked(client *Client, roomID string) {
	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client.ID)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.rooms, roomID)
}

// InRoom reports whether the client is a member of roomID.
func (h *Hub) InRoom(clientID, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[roomID][clientID]
	return ok
}

// RoomSize returns the number of local members of a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// RoomsOf returns the sorted room names a client belongs to.
func (h *Hub) RoomsOf(clientID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(client.rooms))
	for roomID := range client.rooms {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

// HasClient reports whether the connection is held by this hub.
func (h *Hub) HasClient(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

// Stats returns connection and room counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Connections: len(h.clients), Rooms: len(h.rooms)}
}

// BroadcastToRoom sends an encoded frame to every member of a room except
// exclude, and returns how many clients it was queued for.
func (h *Hub) BroadcastToRoom(roomID string, data []byte, exclude string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for clientID, client := range h.rooms[roomID] {
		if clientID == exclude {
			continue
		}
		if h.deliverLocked(client, data) {
			sent++
		}
	}
	return sent
}

// SendToClient sends an encoded frame to one client. It reports false when
// the client is not connected to this hub.
func (h *Hub) SendToClient(clientID string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return false
	}
	return h.deliverLocked(client, data)
}

// deliverLocked must run with h.mu held, which keeps Send open.
func (h *Hub) deliverLocked(client *Client, data []byte) bool {
	select {
	case client.Send <- data:
		return true
	default:
		// Client's send buffer is full
		select {
		case h.evict <- client:
		default:
		}
		return false
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	deadline := time.Now().Add(h.config.WriteWait)
	for _, client := range clients {
		if client.Conn == nil {
			h.Unregister(client)
			continue
		}
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		client.Conn.WriteControl(websocket.CloseMessage, msg, deadline)
		client.Conn.Close()
	}
}

// StartPumps runs the client's write and read pumps. Once the hub is
// draining it refuses, unregisters the client and closes its connection.
func (h *Hub) StartPumps(client *Client, handler func(*Client, []byte)) bool {
	h.pumpsMu.Lock()
	if h.draining {
		h.pumpsMu.Unlock()
		h.Unregister(client)
		client.Conn.Close()
		return false
	}
	h.pumps.Add(1)
	h.pumpsMu.Unlock()

	go client.WritePump()
	go func() {
		defer h.pumps.Done()
		client.ReadPump(handler)
	}()
	return true
}

// Drain waits until every read pump, disconnect handler included, has
// returned. It gives up when ctx is done.
func (h *Hub) Drain(ctx context.Context) error {
	h.pumpsMu.Lock()
	h.draining = true
	h.pumpsMu.Unlock()

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadPump pumps messages from the WebSocket connection to the handler.
// Frames of one connection are handled one at a time, in arrival order.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		// Call disconnect handler before unregistering
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l := pkglog.L()
				l.Error().Err(err).Str(pkglog.FieldConnID, c.ID).Msg("websocket error")
			}
			break
		}

		if c.Session != nil {
			c.Session.Touch()
		}

		handler(c, message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
