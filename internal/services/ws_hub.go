package services

import (
	"fmt"
	"sync"
	"time"

	"lunchly-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Server to client message types
const (
	WSTypeHistory          = "history"
	WSTypeMessage          = "message"
	WSTypeRestaurants      = "restaurants"
	WSTypeSuggestions      = "suggestions"
	WSTypeRestaurantPicked = "restaurant_picked"
	WSTypePlaceDetails     = "place_details"
	WSTypeMatchEvent       = "match_event"
	WSTypeError            = "error"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage represents a server to client WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	MatchID   string      `json:"match_id,omitempty"`
	Event     string      `json:"event,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// WSConn is the part of *websocket.Conn the hub writes through
type WSConn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WSClient is one registered connection. Writes are serialized because the
// connection reader, conversation relays and hub events all send on it.
type WSClient struct {
	UserID string

	mu   sync.Mutex
	conn WSConn
}

// NewWSClient wraps a connection for userID
func NewWSClient(userID string, conn WSConn) *WSClient {
	return &WSClient{UserID: userID, conn: conn}
}

// Send writes one message
func (c *WSClient) Send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close closes the underlying connection
func (c *WSClient) Close() error {
	return c.conn.Close()
}

// WSHub manages WebSocket connections, one per user
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]*WSClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[string]*WSClient)}
}

// Register registers a connection, closing an older one for the same user
func (h *WSHub) Register(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[c.UserID]; ok && existing != c {
		existing.Close()
	}
	h.clients[c.UserID] = c

	log.Info().Str("user_id", c.UserID).Msg("WebSocket connection registered")
}

// Unregister removes c if it is still the user's current connection
func (h *WSHub) Unregister(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[c.UserID]; ok && current == c {
		delete(h.clients, c.UserID)
		log.Info().Str("user_id", c.UserID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, msg WSMessage) error {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %s is not connected", userID)
	}
	if err := c.Send(msg); err != nil {
		h.Unregister(c)
		c.Close()
		return err
	}
	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// PublishMatchEvent tells both connected participants about a committed transition
func (h *WSHub) PublishMatchEvent(event string, m *models.Match) {
	msg := WSMessage{
		Type:    WSTypeMatchEvent,
		MatchID: m.ID,
		Event:   event,
		Data:    m,
	}
	for _, userID := range []string{m.UserA, m.UserB} {
		if !h.IsOnline(userID) {
			continue
		}
		if err := h.SendToUser(userID, msg); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("match_id", m.ID).Msg("Failed to deliver match event")
		}
	}
}
