package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"messenger-backend/internal/identity"
	"messenger-backend/internal/kvstore"
	"messenger-backend/internal/models"
)

// Root paths that are not user keys. Safe keys always contain "-", so they
// cannot collide with these.
const (
	usersPath = "users"
)

// userRecord is the document stored at <safeEmail>. FirstName is nil when
// the node only holds a conversation list.
type userRecord struct {
	FirstName     *string               `json:"first_name"`
	LastName      string                `json:"last_name"`
	Conversations []models.Conversation `json:"conversations,omitempty"`
}

// conversationRecord is the document stored at <conversationId>
type conversationRecord struct {
	Messages []messageRecord `json:"messages"`
}

// messageRecord is one element of <conversationId>/messages
type messageRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Date        string `json:"date"`
	SenderEmail string `json:"sender_email"`
	IsRead      bool   `json:"is_read"`
	Name        string `json:"name"`
}

func encodeMessage(msg *models.Message) messageRecord {
	return messageRecord{
		ID:          msg.MessageID,
		Type:        string(msg.Kind),
		Content:     msg.Content(),
		Date:        identity.FormatDate(msg.SentDate),
		SenderEmail: identity.SafeKey(msg.Sender.ID),
		IsRead:      false,
		Name:        msg.Sender.DisplayName,
	}
}

func decodeMessage(rec messageRecord) (*models.Message, error) {
	kind, err := models.ParseMessageKind(rec.Type)
	if err != nil {
		return nil, err
	}

	sentDate, err := identity.ParseDate(rec.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDecodeFailed, err)
	}

	msg := &models.Message{
		Sender: models.Sender{
			ID:          rec.SenderEmail,
			DisplayName: rec.Name,
		},
		MessageID: rec.ID,
		SentDate:  sentDate,
		Kind:      kind,
	}

	switch kind {
	case models.KindPhoto, models.KindVideo:
		u, err := url.Parse(rec.Content)
		if err != nil || rec.Content == "" {
			return nil, fmt.Errorf("invalid media url %q: %w", rec.Content, models.ErrDecodeFailed)
		}
		msg.Media = &models.Media{
			URL:              u.String(),
			PlaceholderImage: "placeholder",
			Size:             models.DefaultMediaSize,
		}
	case models.KindLocation:
		loc, err := models.ParseLocation(rec.Content)
		if err != nil {
			return nil, err
		}
		msg.Location = loc
	default:
		msg.Text = rec.Content
	}

	return msg, nil
}

func latestMessageOf(msg *models.Message) models.LatestMessage {
	return models.LatestMessage{
		Date:   identity.FormatDate(msg.SentDate),
		Text:   msg.Content(),
		IsRead: false,
	}
}

func writeFailed(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, models.ErrWriteFailed, err)
}

func readFailed(op string, err error) error {
	if errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("failed to %s: %w", op, models.ErrNotFound)
	}
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) {
		return fmt.Errorf("failed to %s: %w: %w", op, models.ErrDecodeFailed, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
