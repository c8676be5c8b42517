package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"messenger-backend/internal/models"
	"messenger-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsPongWait     = 60 * time.Second
	wsMaxFrameSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSInbound is a message sent by the client over the socket
type WSInbound struct {
	Type           string  `json:"type"`
	ConversationID string  `json:"conversation_id,omitempty"`
	OtherUserEmail string  `json:"other_user_email,omitempty"`
	Name           string  `json:"name,omitempty"`
	Kind           string  `json:"kind,omitempty"`
	Text           string  `json:"text,omitempty"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub         *services.WSHub
	userService *services.UserService
	chatService *services.ChatService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	chatService *services.ChatService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
		chatService: chatService,
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	email, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := h.hub.Register(email, conn)
	defer h.hub.Unregister(client)

	conn.SetReadLimit(wsMaxFrameSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	log.Info().Str("email", email).Msg("WebSocket connection established")

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("email", email).Msg("WebSocket error")
			}
			break
		}

		var msg WSInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Error().Err(err).Str("email", email).Msg("Failed to parse WebSocket message")
			h.hub.SendError(email, "Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, email, msg); err != nil {
			log.Error().Err(err).Str("email", email).Str("type", msg.Type).Msg("Failed to handle message")
			h.hub.SendError(email, err.Error())
		}
	}
}

// handleMessage processes incoming WebSocket messages. Replies go through
// the hub so the client's write pump stays the only writer.
func (h *WebSocketHandler) handleMessage(ctx context.Context, email string, msg WSInbound) error {
	switch msg.Type {
	case "send_message":
		_, err := h.chatService.SendMessage(ctx, email, services.SendMessageRequest{
			ConversationID: msg.ConversationID,
			OtherUserEmail: msg.OtherUserEmail,
			Name:           msg.Name,
			Kind:           models.MessageKind(msg.Kind),
			Text:           msg.Text,
			Latitude:       msg.Latitude,
			Longitude:      msg.Longitude,
		})
		return err
	case "ping":
		return h.hub.SendToUser(email, services.WSMessage{Type: "pong"})
	default:
		return h.hub.SendError(email, "Unknown message type")
	}
}
