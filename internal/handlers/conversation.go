package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"messenger-backend/internal/middleware"
	"messenger-backend/internal/models"
	"messenger-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ConversationHandler handles conversation-related HTTP requests
type ConversationHandler struct {
	chatService *services.ChatService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(chatService *services.ChatService) *ConversationHandler {
	return &ConversationHandler{
		chatService: chatService,
	}
}

// SendMessageBody is the JSON form of a message. Photo and video messages
// are sent as multipart form data with the file in "media".
type SendMessageBody struct {
	OtherUserEmail string  `json:"other_user_email"`
	Name           string  `json:"name"`
	Kind           string  `json:"kind"`
	Text           string  `json:"text"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
}

// ListConversations handles GET /api/v1/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.chatService.ListConversations(r.Context(), middleware.GetUserEmail(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to list conversations")
		return
	}

	respondJSON(w, conversations, http.StatusOK)
}

// CreateConversation handles POST /api/v1/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, "")
}

// GetMessages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	email := middleware.GetUserEmail(r.Context())
	conversationID := chi.URLParam(r, "id")

	messages, err := h.chatService.GetMessages(r.Context(), email, conversationID)
	if err != nil {
		respondServiceError(w, err, "Failed to get messages")
		return
	}

	respondJSON(w, messages, http.StatusOK)
}

// SendMessage handles POST /api/v1/conversations/{id}/messages
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, chi.URLParam(r, "id"))
}

func (h *ConversationHandler) send(w http.ResponseWriter, r *http.Request, conversationID string) {
	req, closeMedia, err := parseSendMessage(w, r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer closeMedia()
	req.ConversationID = conversationID

	result, err := h.chatService.SendMessage(r.Context(), middleware.GetUserEmail(r.Context()), req)
	if err != nil {
		respondServiceError(w, err, "Failed to send message")
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondJSON(w, result, status)
}

// parseSendMessage reads a JSON or multipart message. The returned func
// releases the uploaded file and is always safe to call.
func parseSendMessage(w http.ResponseWriter, r *http.Request) (services.SendMessageRequest, func(), error) {
	noop := func() {}

	if !isMultipart(r) {
		var body SendMessageBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return services.SendMessageRequest{}, noop, errInvalidBody
		}
		return body.toRequest(), noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return services.SendMessageRequest{}, noop, errInvalidForm
	}

	body := SendMessageBody{
		OtherUserEmail: r.FormValue("other_user_email"),
		Name:           r.FormValue("name"),
		Kind:           r.FormValue("kind"),
		Text:           r.FormValue("text"),
	}
	body.Latitude, _ = strconv.ParseFloat(r.FormValue("latitude"), 64)
	body.Longitude, _ = strconv.ParseFloat(r.FormValue("longitude"), 64)
	req := body.toRequest()

	file, header, err := r.FormFile("media")
	if err == http.ErrMissingFile {
		return req, noop, nil
	}
	if err != nil {
		return req, noop, errInvalidForm
	}

	switch req.Kind {
	case models.KindVideo:
		req.Video = file
		req.VideoSize = header.Size
		return req, func() { file.Close() }, nil
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return req, noop, errInvalidForm
		}
		req.Photo = data
		return req, noop, nil
	}
}

func (b SendMessageBody) toRequest() services.SendMessageRequest {
	return services.SendMessageRequest{
		OtherUserEmail: b.OtherUserEmail,
		Name:           b.Name,
		Kind:           models.MessageKind(b.Kind),
		Text:           b.Text,
		Latitude:       b.Latitude,
		Longitude:      b.Longitude,
	}
}
