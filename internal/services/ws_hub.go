package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"messenger-backend/internal/identity"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Message        string      `json:"message,omitempty"`
	Data           interface{} `json:"data,omitempty"`
}

// WSClient is one live socket. Only its write pump writes to the connection.
type WSClient struct {
	key  string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *WSClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// writePump drains the send channel onto the socket and keeps it alive
// with pings. It returns when the channel is closed or a write fails.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("user", c.key).Msg("WebSocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WSHub manages WebSocket connections keyed by the user's safe email
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]*WSClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[string]*WSClient),
	}
}

// Register registers a new WebSocket connection for a user and starts its
// write pump. An older connection of the same user is closed.
func (h *WSHub) Register(email string, conn *websocket.Conn) *WSClient {
	key := identity.SafeKey(email)
	client := &WSClient{
		key:  key,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	if existing, exists := h.clients[key]; exists {
		existing.close()
	}
	h.clients[key] = client
	h.mu.Unlock()

	go client.writePump()

	log.Info().Str("user", key).Msg("WebSocket connection registered")
	return client
}

// Unregister removes client if it is still the user's current connection
func (h *WSHub) Unregister(client *WSClient) {
	h.mu.Lock()
	if current, exists := h.clients[client.key]; exists && current == client {
		delete(h.clients, client.key)
		log.Info().Str("user", client.key).Msg("WebSocket connection unregistered")
	}
	// Closed under the lock so SendToUser never sends on a closed channel.
	client.close()
	h.mu.Unlock()
}

// SendToUser queues a message for the user's write pump
func (h *WSHub) SendToUser(email string, message WSMessage) error {
	key := identity.SafeKey(email)

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[key]
	if !exists {
		return fmt.Errorf("user %s is not connected", key)
	}

	select {
	case client.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer of %s is full", key)
	}
}

// SendError queues an error event for the user
func (h *WSHub) SendError(email, message string) error {
	return h.SendToUser(email, WSMessage{Type: "error", Message: message})
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(email string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.clients[identity.SafeKey(email)]
	return exists
}

// NotifyNewMessage sends a new_message event to each listed user that is
// connected and returns the users that were not.
func (h *WSHub) NotifyNewMessage(conversationID string, payload interface{}, emails ...string) []string {
	var offline []string
	for _, email := range emails {
		err := h.SendToUser(email, WSMessage{
			Type:           "new_message",
			ConversationID: conversationID,
			Data:           payload,
		})
		if err != nil {
			log.Debug().Err(err).Str("user", identity.SafeKey(email)).Msg("new_message not delivered")
			offline = append(offline, email)
		}
	}
	return offline
}
