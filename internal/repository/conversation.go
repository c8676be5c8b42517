package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"messenger-backend/internal/identity"
	"messenger-backend/internal/kvstore"
	"messenger-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var errConversationMissing = errors.New("conversation does not exist")

// ConversationRepository handles conversation lists and message lists
type ConversationRepository struct {
	tree *kvstore.Tree
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(tree *kvstore.Tree) *ConversationRepository {
	return &ConversationRepository{tree: tree}
}

// CreateNewConversation allocates a conversation ID, adds an entry to the
// sender's and then the recipient's conversation list, and finally writes the
// message list holding firstMessage. The sender is firstMessage.Sender.
//
// The three writes are not atomic as a group. A failure stops the sequence
// and earlier writes stay in place.
func (r *ConversationRepository) CreateNewConversation(ctx context.Context, otherUserEmail, name string, firstMessage *models.Message) (string, error) {
	conversationID := "conversation_" + uuid.New().String()
	senderKey := identity.SafeKey(firstMessage.Sender.ID)
	recipientKey := identity.SafeKey(otherUserEmail)
	latest := latestMessageOf(firstMessage)

	senderEntry := models.Conversation{
		ID:             conversationID,
		OtherUserEmail: recipientKey,
		Name:           name,
		LatestMessage:  latest,
	}
	if err := r.upsertEntry(ctx, senderKey, senderEntry); err != nil {
		return "", writeFailed("add conversation to sender", err)
	}

	recipientEntry := models.Conversation{
		ID:             conversationID,
		OtherUserEmail: senderKey,
		Name:           firstMessage.Sender.DisplayName,
		LatestMessage:  latest,
	}
	if err := r.upsertEntry(ctx, recipientKey, recipientEntry); err != nil {
		return "", writeFailed("add conversation to recipient", err)
	}

	record := conversationRecord{Messages: []messageRecord{encodeMessage(firstMessage)}}
	if err := r.tree.Ref(conversationID).Set(ctx, record); err != nil {
		return "", writeFailed("write first message", err)
	}

	log.Debug().
		Str("conversation_id", conversationID).
		Str("sender", senderKey).
		Str("recipient", recipientKey).
		Msg("Conversation created")

	return conversationID, nil
}

// SendMessage appends newMessage to an existing conversation and refreshes
// the latest message shown in both participants' lists. name is the other
// user's display name, used if the sender's entry has to be re-added.
func (r *ConversationRepository) SendMessage(ctx context.Context, conversationID, name, otherUserEmail string, newMessage *models.Message) error {
	record := encodeMessage(newMessage)

	err := r.tree.Ref(conversationID).Child("messages").Transaction(ctx, func(current json.RawMessage) (any, error) {
		if current == nil {
			return nil, errConversationMissing
		}
		var messages []messageRecord
		if err := json.Unmarshal(current, &messages); err != nil {
			return nil, err
		}
		return append(messages, record), nil
	})
	if err != nil {
		return writeFailed(fmt.Sprintf("append message to %s", conversationID), err)
	}

	senderKey := identity.SafeKey(newMessage.Sender.ID)
	recipientKey := identity.SafeKey(otherUserEmail)
	latest := latestMessageOf(newMessage)

	senderEntry := models.Conversation{
		ID:             conversationID,
		OtherUserEmail: recipientKey,
		Name:           name,
		LatestMessage:  latest,
	}
	if err := r.upsertEntry(ctx, senderKey, senderEntry); err != nil {
		return writeFailed("update sender latest message", err)
	}

	recipientEntry := models.Conversation{
		ID:             conversationID,
		OtherUserEmail: senderKey,
		Name:           newMessage.Sender.DisplayName,
		LatestMessage:  latest,
	}
	if err := r.upsertEntry(ctx, recipientKey, recipientEntry); err != nil {
		return writeFailed("update recipient latest message", err)
	}

	return nil
}

// upsertEntry replaces the latest message of the entry with entry.ID in the
// user's list, or appends entry when the list has none.
func (r *ConversationRepository) upsertEntry(ctx context.Context, userKey string, entry models.Conversation) error {
	return r.tree.Ref(userKey).Child("conversations").Transaction(ctx, func(current json.RawMessage) (any, error) {
		var conversations []models.Conversation
		if current != nil {
			if err := json.Unmarshal(current, &conversations); err != nil {
				return nil, err
			}
		}
		for i := range conversations {
			if conversations[i].ID == entry.ID {
				conversations[i].LatestMessage = entry.LatestMessage
				return conversations, nil
			}
		}
		return append(conversations, entry), nil
	})
}

// GetAllMessagesForConversation returns the conversation's messages in send
// order. Records that cannot be decoded are skipped.
func (r *ConversationRepository) GetAllMessagesForConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	var record conversationRecord
	if err := r.tree.Ref(conversationID).Get(ctx, &record); err != nil {
		return nil, readFailed(fmt.Sprintf("get conversation %s", conversationID), err)
	}

	messages := make([]*models.Message, 0, len(record.Messages))
	for _, rec := range record.Messages {
		msg, err := decodeMessage(rec)
		if err != nil {
			log.Warn().
				Err(err).
				Str("conversation_id", conversationID).
				Str("message_id", rec.ID).
				Str("type", rec.Type).
				Msg("Skipping undecodable message")
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// GetAllConversations returns the conversation list of the user with email
func (r *ConversationRepository) GetAllConversations(ctx context.Context, email string) ([]models.Conversation, error) {
	conversations := []models.Conversation{}
	err := r.tree.Ref(identity.SafeKey(email)).Child("conversations").Get(ctx, &conversations)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return []models.Conversation{}, nil
		}
		return nil, readFailed("get conversations", err)
	}
	return conversations, nil
}

// ConversationExists finds the conversation that targetRecipientEmail holds
// with senderEmail and checks that its message list exists.
func (r *ConversationRepository) ConversationExists(ctx context.Context, targetRecipientEmail, senderEmail string) (string, error) {
	conversations, err := r.GetAllConversations(ctx, targetRecipientEmail)
	if err != nil {
		return "", err
	}

	senderKey := identity.SafeKey(senderEmail)
	for _, c := range conversations {
		if c.OtherUserEmail != senderKey {
			continue
		}
		if _, err := r.tree.Ref(c.ID).Child("messages").Raw(ctx); err != nil {
			return "", readFailed(fmt.Sprintf("get conversation %s", c.ID), err)
		}
		return c.ID, nil
	}

	return "", fmt.Errorf("no conversation with %s: %w", senderKey, models.ErrNotFound)
}
