package services

import (
	"context"
	"fmt"

	"lunchly-backend/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Notification is a push message about one match
type Notification struct {
	Title   string
	Body    string
	MatchID string
}

// Notifier delivers push notifications to a device token
type Notifier interface {
	Notify(ctx context.Context, deviceToken string, n Notification) error
}

// NopNotifier drops every notification; used when push is not configured
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(ctx context.Context, deviceToken string, n Notification) error {
	log.Debug().Str("match_id", n.MatchID).Str("title", n.Title).Msg("Push disabled, notification dropped")
	return nil
}

// APNsNotifier sends notifications through Apple Push Notification service
type APNsNotifier struct {
	client *apns2.Client
	topic  string
}

// NewAPNsNotifier loads the .p8 signing key and builds a token-auth client
func NewAPNsNotifier(cfg config.APNsConfig) (*APNsNotifier, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsNotifier{client: client, topic: cfg.Topic}, nil
}

// NewNotifier returns an APNs notifier when a key is configured, otherwise a NopNotifier
func NewNotifier(cfg config.APNsConfig) Notifier {
	if cfg.KeyFile == "" {
		log.Info().Msg("APNs key not configured, push notifications disabled")
		return NopNotifier{}
	}
	n, err := NewAPNsNotifier(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("APNs unavailable, push notifications disabled")
		return NopNotifier{}
	}
	return n
}

// BuildPayload renders the alert; match_id lets the app open the conversation
func BuildPayload(n Notification) *payload.Payload {
	p := payload.NewPayload().
		AlertTitle(n.Title).
		AlertBody(n.Body).
		Sound("default")
	if n.MatchID != "" {
		p = p.Custom("match_id", n.MatchID)
	}
	return p
}

// Notify implements Notifier
func (a *APNsNotifier) Notify(ctx context.Context, deviceToken string, n Notification) error {
	if deviceToken == "" {
		return nil
	}

	res, err := a.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       a.topic,
		Payload:     BuildPayload(n),
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}

	log.Debug().Str("match_id", n.MatchID).Str("apns_id", res.ApnsID).Msg("Push sent")
	return nil
}
