package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"questvote/internal/metrics"
)

// Client represents a single WebSocket connection bound to one room.
type Client struct {
	ID       string
	RoomCode string
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte

	// set by the hub before Send is closed
	closeStatus websocket.StatusCode
	closeReason string
}

func NewClient(roomCode, playerID string, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:       uuid.NewString(),
		RoomCode: roomCode,
		PlayerID: playerID,
		Conn:     conn,
		Send:     make(chan []byte, buffer),
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
// Each write is bounded by timeout. It returns nil when the hub dropped the client.
func (c *Client) WritePump(ctx context.Context, timeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.Send:
			if !ok {
				c.Conn.Close(c.closeStatus, c.closeReason)
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, timeout)
			err := c.Conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// Keepalive pings the peer every interval until ctx is done. A failed or
// unanswered ping returns the error so the caller can drop the connection.
// It needs a concurrent reader on the connection to receive pongs.
func (c *Client) Keepalive(ctx context.Context, interval, timeout time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, timeout)
			err := c.Conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// Hub manages per-room WebSocket connections.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]map[*Client]struct{}
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewHub creates a new Hub.
func NewHub(m *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		metrics: m,
		log:     log,
	}
}

// Register adds a client to the group for code, creating the group if needed.
func (h *Hub) Register(code string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.rooms[code]
	if !ok {
		group = make(map[*Client]struct{})
		h.rooms[code] = group
	}
	if _, exists := group[c]; exists {
		return
	}
	group[c] = struct{}{}
	h.metrics.ConnectionAdded()
}

// Unregister removes a client and closes its Send channel. Removing a client
// that is already gone is a no-op.
func (h *Hub) Unregister(code string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(code, c, websocket.StatusNormalClosure, "")
}

func (h *Hub) removeLocked(code string, c *Client, status websocket.StatusCode, reason string) bool {
	group, ok := h.rooms[code]
	if !ok {
		return false
	}
	if _, ok := group[c]; !ok {
		return false
	}
	delete(group, c)
	if len(group) == 0 {
		delete(h.rooms, code)
	}
	c.closeStatus = status
	c.closeReason = reason
	close(c.Send)
	h.metrics.ConnectionRemoved()
	return true
}

// Broadcast marshals msg once and queues it for every client in the room.
// A client whose queue is full is treated as failed and removed; the others
// still receive the message. Queue order per client matches call order.
func (h *Hub) Broadcast(code string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("room", code).Msg("marshal broadcast")
		return
	}
	h.BroadcastRaw(code, data)
}

func (h *Hub) BroadcastRaw(code string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.rooms[code]
	if !ok {
		return
	}
	h.metrics.Broadcast()
	for c := range group {
		select {
		case c.Send <- data:
		default:
			h.removeLocked(code, c, websocket.StatusPolicyViolation, "send queue full")
			h.metrics.SendFailed()
			h.log.Warn().Str("room", code).Str("client", c.ID).Str("player", c.PlayerID).Msg("dropping slow client")
		}
	}
}

// CloseRoom drops every client of a room.
func (h *Hub) CloseRoom(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[code] {
		h.removeLocked(code, c, websocket.StatusGoingAway, "room closed")
	}
}

// Count returns the number of live clients in a room.
func (h *Hub) Count(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[code])
}

// IsClosed reports whether err means the peer went away rather than a real failure.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}
