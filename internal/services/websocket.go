package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by CORS and the token check
	},
}

// RoomForUser names the room a user's connections join.
func RoomForUser(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

// Client represents a WebSocket client
type Client struct {
	UserID uint
	Room   string
	Conn   *websocket.Conn
	Send   chan []byte
	hub    *Hub
}

// WebSocketMessage is the envelope of every pushed event.
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub keeps connected clients grouped by room. Emits never block: a client
// whose buffer is full misses the message and can catch up by polling.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	stopped    chan struct{}
	mutex      sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations until Stop is called.
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			room, ok := h.rooms[client.Room]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.Room] = room
			}
			room[client] = true
			h.mutex.Unlock()
			WSClients.Inc()
			h.logger.Debug("ws client joined", "user_id", client.UserID, "room", client.Room)

		case client := <-h.unregister:
			h.remove(client)

		case <-h.done:
			h.mutex.Lock()
			for name, room := range h.rooms {
				for client := range room {
					close(client.Send)
					WSClients.Dec()
				}
				delete(h.rooms, name)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop closes every client and ends Run. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.stopped
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, ok := h.rooms[client.Room]
	if !ok || !room[client] {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.Room)
	}
	close(client.Send)
	WSClients.Dec()
	h.logger.Debug("ws client left", "user_id", client.UserID, "room", client.Room)
}

// Register adds a client. It reports false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// NewClient builds an unconnected client for userID.
func (h *Hub) NewClient(userID uint, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Room:   RoomForUser(userID),
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		hub:    h,
	}
}

// Emit pushes event to every client in room.
func (h *Hub) Emit(room, event string, payload interface{}) {
	data, err := json.Marshal(WebSocketMessage{Type: event, Data: payload})
	if err != nil {
		h.logger.Error("ws marshal failed", "event", event, "error", err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("ws client buffer full, dropping message", "room", room, "event", event)
		}
	}
}

// EmitToUser pushes event to the user's room.
func (h *Hub) EmitToUser(userID uint, event string, payload interface{}) {
	h.Emit(RoomForUser(userID), event, payload)
}

// RoomSize returns the number of clients currently in room.
func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	total := 0
	for _, room := range h.rooms {
		total += len(room)
	}
	return total
}

// Serve upgrades the request and joins the connection to the user's room.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := h.NewClient(userID, conn)
	if !h.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains inbound frames so control messages are processed. The
// channel is push-only; client payloads are ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("ws read error", "user_id", c.UserID, "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("ws write error", "user_id", c.UserID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
