package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// PushMessage is the content of a push notification
type PushMessage struct {
	Title          string
	Body           string
	ConversationID string
}

// Notifier delivers push notifications to a device
type Notifier interface {
	Notify(ctx context.Context, deviceToken string, msg PushMessage) error
}

// NoopNotifier drops every notification
type NoopNotifier struct{}

// Notify discards msg
func (NoopNotifier) Notify(ctx context.Context, deviceToken string, msg PushMessage) error {
	return nil
}

// APNsConfig holds the token-based APNs credentials
type APNsConfig struct {
	KeyPath    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// APNsNotifier sends notifications through Apple Push Notification service
type APNsNotifier struct {
	client *apns2.Client
	topic  string
}

// NewAPNsNotifier creates a notifier from a .p8 signing key
func NewAPNsNotifier(cfg APNsConfig) (*APNsNotifier, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	tok := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(tok)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsNotifier{
		client: client,
		topic:  cfg.Topic,
	}, nil
}

// Notify pushes msg to deviceToken
func (n *APNsNotifier) Notify(ctx context.Context, deviceToken string, msg PushMessage) error {
	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       n.topic,
		Payload:     buildPayload(msg),
	}

	res, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}

	log.Debug().Str("apns_id", res.ApnsID).Str("conversation_id", msg.ConversationID).Msg("Push sent")
	return nil
}

func buildPayload(msg PushMessage) *payload.Payload {
	return payload.NewPayload().
		AlertTitle(msg.Title).
		AlertBody(msg.Body).
		Sound("default").
		MutableContent().
		Custom("conversation_id", msg.ConversationID)
}
