package v1

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/strawbean/plugin/reminder"
	"github.com/hrygo/strawbean/server/auth"
	"github.com/hrygo/strawbean/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 256
)

// Stream message types.
const (
	StreamTypeWelcome = "welcome"
	StreamTypeFired   = "reminder.fired"
)

// StreamMessage is one frame sent to stream clients.
type StreamMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type streamClient struct {
	hub     *StreamHub
	conn    *websocket.Conn
	send    chan []byte
	ownerID string
}

// StreamHub pushes fired reminders to their owners' open WebSocket
// connections. An owner may hold several connections.
type StreamHub struct {
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	logger  *slog.Logger
}

// NewStreamHub creates an empty hub.
func NewStreamHub() *StreamHub {
	return &StreamHub{
		clients: make(map[*streamClient]struct{}),
		logger:  slog.Default(),
	}
}

// SetLogger sets a custom logger.
func (h *StreamHub) SetLogger(logger *slog.Logger) {
	h.logger = logger
}

// Notify implements reminder.Notifier. Owners without an open connection are
// skipped; the stream is best-effort and never fails a delivery.
func (h *StreamHub) Notify(ctx context.Context, r *store.Reminder) error {
	sent, err := h.SendToOwner(r.OwnerID, StreamMessage{Type: StreamTypeFired, Payload: reminder.NewNotification(r)})
	if err != nil {
		return err
	}
	h.logger.DebugContext(ctx, "reminder streamed", "owner_id", r.OwnerID, "connections", sent)
	return nil
}

// SendToOwner queues msg on every connection of ownerID and returns how many
// received it. Connections whose buffer is full are dropped.
func (h *StreamHub) SendToOwner(ownerID string, msg StreamMessage) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.Wrap(err, "failed to marshal stream message")
	}

	var stale []*streamClient
	sent := 0
	h.mu.RLock()
	for client := range h.clients {
		if client.ownerID != ownerID {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Warn("stream client buffer full, closing", "owner_id", client.ownerID)
		h.unregister(client)
	}
	return sent, nil
}

// Connections returns the number of open connections of ownerID.
func (h *StreamHub) Connections(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.ownerID == ownerID {
			n++
		}
	}
	return n
}

// Close disconnects every client.
func (h *StreamHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		close(client.send)
	}
}

func (h *StreamHub) register(client *streamClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client registered", "owner_id", client.ownerID, "total", total)
}

func (h *StreamHub) unregister(client *streamClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	if ok {
		h.logger.Debug("stream client unregistered", "owner_id", client.ownerID)
	}
}

// HandleStream upgrades an authenticated request to a WebSocket that receives
// the owner's fired reminders.
func (h *StreamHub) HandleStream(c echo.Context) error {
	ownerID := auth.OwnerID(c.Request().Context())
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written an error response.
		h.logger.Debug("stream upgrade failed", "owner_id", ownerID, "error", err)
		return nil
	}

	client := &streamClient{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		ownerID: ownerID,
	}
	// Registered before the welcome frame so a client that has read it
	// cannot miss a notification. The write pump starts afterwards, keeping
	// a single writer on the connection.
	h.register(client)

	welcome, _ := json.Marshal(StreamMessage{Type: StreamTypeWelcome, Payload: map[string]string{"owner_id": ownerID}})
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
		h.unregister(client)
		conn.Close()
		return nil
	}

	go client.writePump()
	client.readPump()
	return nil
}

// readPump consumes control frames until the connection closes. Clients do not
// send data messages.
func (c *streamClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("stream read error", "owner_id", c.ownerID, "error", err)
			}
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
