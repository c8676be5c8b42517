package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"messenger-backend/internal/identity"
	"messenger-backend/internal/models"
	"messenger-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// SendMessageRequest is a message to send. ConversationID is empty for the
// first message to OtherUserEmail.
type SendMessageRequest struct {
	ConversationID string
	OtherUserEmail string
	Name           string
	Kind           models.MessageKind
	Text           string

	Photo     []byte
	Video     io.Reader
	VideoSize int64

	Latitude  float64
	Longitude float64
}

// SendMessageResult reports where the message went
type SendMessageResult struct {
	ConversationID string          `json:"conversation_id"`
	Created        bool            `json:"created"`
	Message        *models.Message `json:"message"`
}

// ChatService handles conversations and messages
type ChatService struct {
	userRepo *repository.UserRepository
	convRepo *repository.ConversationRepository
	credRepo *repository.CredentialRepository
	media    *MediaService
	hub      *WSHub
	notifier Notifier
}

// NewChatService creates a new chat service
func NewChatService(
	userRepo *repository.UserRepository,
	convRepo *repository.ConversationRepository,
	credRepo *repository.CredentialRepository,
	media *MediaService,
	hub *WSHub,
	notifier Notifier,
) *ChatService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &ChatService{
		userRepo: userRepo,
		convRepo: convRepo,
		credRepo: credRepo,
		media:    media,
		hub:      hub,
		notifier: notifier,
	}
}

// ListConversations returns the conversation list of the user
func (s *ChatService) ListConversations(ctx context.Context, email string) ([]models.Conversation, error) {
	return s.convRepo.GetAllConversations(ctx, email)
}

// GetMessages returns the messages of a conversation the user takes part in
func (s *ChatService) GetMessages(ctx context.Context, email, conversationID string) ([]*models.Message, error) {
	if _, err := s.findEntry(ctx, email, conversationID); err != nil {
		return nil, err
	}
	return s.convRepo.GetAllMessagesForConversation(ctx, conversationID)
}

// SendMessage builds the message, uploads its attachment, and writes it to
// the conversation, creating the conversation if the two users have none.
// Connected participants get a new_message event; an offline recipient with
// a registered device gets a push notification.
func (s *ChatService) SendMessage(ctx context.Context, senderEmail string, req SendMessageRequest) (*SendMessageResult, error) {
	if err := ValidateEmail(req.OtherUserEmail); err != nil {
		return nil, err
	}
	if identity.SafeKey(req.OtherUserEmail) == identity.SafeKey(senderEmail) {
		return nil, fmt.Errorf("cannot message yourself: %w", models.ErrInvalidInput)
	}

	sender, err := s.userRepo.GetUser(ctx, senderEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to get sender: %w", err)
	}

	other, err := s.userRepo.GetUser(ctx, req.OtherUserEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	name := req.Name
	if name == "" {
		name = other.DisplayName()
	}

	// Resolve the conversation before uploading anything so a rejected
	// request leaves no blob behind.
	conversationID := req.ConversationID
	if conversationID != "" {
		entry, err := s.findEntry(ctx, senderEmail, conversationID)
		if err != nil {
			return nil, err
		}
		if entry.OtherUserEmail != identity.SafeKey(req.OtherUserEmail) {
			return nil, fmt.Errorf("conversation %s is not with %s: %w",
				conversationID, identity.SafeKey(req.OtherUserEmail), models.ErrInvalidInput)
		}
	} else {
		existing, err := s.convRepo.ConversationExists(ctx, req.OtherUserEmail, senderEmail)
		switch {
		case err == nil:
			conversationID = existing
		case errors.Is(err, models.ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to look up conversation: %w", err)
		}
	}

	now := time.Now()
	msg := &models.Message{
		Sender: models.Sender{
			ID:          identity.SafeKey(senderEmail),
			DisplayName: sender.DisplayName(),
		},
		MessageID: identity.MessageID(req.OtherUserEmail, senderEmail, now),
		SentDate:  now,
		Kind:      req.Kind,
	}

	if err := s.fillPayload(ctx, msg, req); err != nil {
		return nil, err
	}

	result := &SendMessageResult{Message: msg}

	if conversationID == "" {
		conversationID, err = s.convRepo.CreateNewConversation(ctx, req.OtherUserEmail, name, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		result.Created = true
	} else {
		if err := s.convRepo.SendMessage(ctx, conversationID, name, req.OtherUserEmail, msg); err != nil {
			return nil, fmt.Errorf("failed to send message: %w", err)
		}
	}
	result.ConversationID = conversationID

	log.Info().
		Str("conversation_id", conversationID).
		Str("message_id", msg.MessageID).
		Str("kind", string(msg.Kind)).
		Bool("created", result.Created).
		Msg("Message sent")

	s.deliver(ctx, conversationID, senderEmail, req.OtherUserEmail, msg)

	return result, nil
}

// fillPayload sets the kind-specific content of msg, uploading media first
func (s *ChatService) fillPayload(ctx context.Context, msg *models.Message, req SendMessageRequest) error {
	switch req.Kind {
	case models.KindPhoto:
		if len(req.Photo) == 0 {
			return fmt.Errorf("photo is required: %w", models.ErrInvalidInput)
		}
		url, err := s.media.UploadMessagePhoto(ctx, req.Photo, identity.PhotoMessageFileName(msg.MessageID))
		if err != nil {
			return err
		}
		msg.Media = &models.Media{URL: url, Size: models.DefaultMediaSize}
	case models.KindVideo:
		if req.Video == nil {
			return fmt.Errorf("video is required: %w", models.ErrInvalidInput)
		}
		url, err := s.media.UploadMessageVideo(ctx, req.Video, req.VideoSize, identity.VideoMessageFileName(msg.MessageID))
		if err != nil {
			return err
		}
		msg.Media = &models.Media{URL: url, Size: models.DefaultMediaSize}
	case models.KindLocation:
		msg.Location = &models.Location{Latitude: req.Latitude, Longitude: req.Longitude}
	case "":
		return fmt.Errorf("message kind is required: %w", models.ErrInvalidInput)
	default:
		if _, err := models.ParseMessageKind(string(req.Kind)); err != nil {
			return fmt.Errorf("message kind %q: %w", req.Kind, models.ErrInvalidInput)
		}
		if req.Text == "" {
			return fmt.Errorf("message text is required: %w", models.ErrInvalidInput)
		}
		msg.Text = req.Text
	}
	return nil
}

// findEntry returns the user's list entry for the conversation, or
// ErrNotFound when the user does not take part in it.
func (s *ChatService) findEntry(ctx context.Context, email, conversationID string) (*models.Conversation, error) {
	conversations, err := s.convRepo.GetAllConversations(ctx, email)
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		if conversations[i].ID == conversationID {
			return &conversations[i], nil
		}
	}
	return nil, fmt.Errorf("conversation %s: %w", conversationID, models.ErrNotFound)
}

func (s *ChatService) deliver(ctx context.Context, conversationID, senderEmail, recipientEmail string, msg *models.Message) {
	if s.hub == nil {
		return
	}

	offline := s.hub.NotifyNewMessage(conversationID, msg, senderEmail, recipientEmail)
	for _, email := range offline {
		if email != recipientEmail {
			continue
		}

		device, err := s.credRepo.GetDevice(ctx, email)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				log.Error().Err(err).Str("user", identity.SafeKey(email)).Msg("Failed to get device")
			}
			continue
		}

		push := PushMessage{
			Title:          msg.Sender.DisplayName,
			Body:           previewText(msg),
			ConversationID: conversationID,
		}
		if err := s.notifier.Notify(ctx, device.APNsToken, push); err != nil {
			log.Error().Err(err).Str("user", identity.SafeKey(email)).Msg("Failed to push notification")
		}
	}
}

func previewText(msg *models.Message) string {
	switch msg.Kind {
	case models.KindPhoto:
		return "Sent a photo"
	case models.KindVideo:
		return "Sent a video"
	case models.KindLocation:
		return "Shared a location"
	default:
		return msg.Text
	}
}
