// Package push delivers Web Push notifications signed with VAPID keys.
package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"kinship/models"
	"kinship/services"
)

const defaultTTL = 30

// Sender signs messages with a VAPID key pair. subject is a contact address
// or https URL; webpush adds the mailto: scheme.
type Sender struct {
	publicKey  string
	privateKey string
	subject    string
	client     webpush.HTTPClient
	log        *zap.Logger
}

// NewSender builds a sender from a VAPID key pair. When either key is missing
// a fresh pair is generated; subscriptions made against it stop working on
// restart, so production should always configure both.
func NewSender(publicKey, privateKey, subject string, log *zap.Logger) (*Sender, error) {
	log = log.Named("push")
	if publicKey == "" || privateKey == "" {
		priv, pub, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, fmt.Errorf("generate vapid keys: %w", err)
		}
		publicKey, privateKey = pub, priv
		log.Warn("generated VAPID keys, set VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY to keep them",
			zap.String("publicKey", publicKey))
	}
	return &Sender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subject:    strings.TrimPrefix(subject, "mailto:"),
		client:     http.DefaultClient,
		log:        log,
	}, nil
}

func (s *Sender) PublicKey() string {
	return s.publicKey
}

// Send encrypts payload for the subscription and posts it to the endpoint.
// A 404 or 410 from the push service means the subscription is gone.
func (s *Sender) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             defaultTTL,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return services.ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("send push: push service returned %d", resp.StatusCode)
	}
	s.log.Debug("push delivered", zap.String("userId", sub.UserID.Hex()), zap.Int("status", resp.StatusCode))
	return nil
}
