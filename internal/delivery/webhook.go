package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kelsos/genjobs/internal/client"
	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
)

// webhookEnvelope is the JSON body posted for every delivery.
type webhookEnvelope struct {
	DeliveryID string    `json:"delivery_id"`
	SessionID  string    `json:"session_id"`
	Receiver   string    `json:"receiver,omitempty"`
	SentAt     time.Time `json:"sent_at"`
	Payload    Payload   `json:"payload"`
}

// WebhookChannel posts payloads to the target's callback URL, falling back
// to a default URL when the target has none.
type WebhookChannel struct {
	client     *client.APIClient
	defaultURL string
	fallback   Channel
}

// NewWebhookChannel returns a channel posting to callback URLs. Targets
// without a callback and no defaultURL are handed to fallback.
func NewWebhookChannel(apiClient *client.APIClient, defaultURL string, fallback Channel) *WebhookChannel {
	if fallback == nil {
		fallback = LogChannel{}
	}
	return &WebhookChannel{
		client:     apiClient,
		defaultURL: defaultURL,
		fallback:   fallback,
	}
}

func (c *WebhookChannel) Deliver(ctx context.Context, target models.DeliveryTarget, p Payload) error {
	url := target.CallbackURL
	if url == "" {
		url = c.defaultURL
	}
	if url == "" {
		return c.fallback.Deliver(ctx, target, p)
	}

	envelope := webhookEnvelope{
		DeliveryID: uuid.NewString(),
		SessionID:  target.SessionID,
		Receiver:   target.Receiver,
		SentAt:     time.Now().UTC(),
		Payload:    p,
	}

	if err := c.client.Post(ctx, url, envelope, nil); err != nil {
		return fmt.Errorf("failed to deliver %s to %s: %w", p.Kind, target.SessionID, err)
	}

	logger.Debug("Delivered %s %s to %s", p.Kind, envelope.DeliveryID, target.SessionID)
	return nil
}
