package delivery

import (
	"context"

	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
)

// LogChannel writes deliveries to the application log. Used when no webhook
// is configured and by the one-shot CLI commands.
type LogChannel struct{}

func (LogChannel) Deliver(_ context.Context, target models.DeliveryTarget, p Payload) error {
	switch p.Kind {
	case KindImage, KindVideo:
		logger.Info("[deliver %s] %s -> %s", p.Kind, target.SessionID, p.Path)
	case KindError:
		logger.Warn("[deliver %s] %s: %s", p.Kind, target.SessionID, p.Text)
	default:
		logger.Info("[deliver %s] %s: %s", p.Kind, target.SessionID, p.Text)
	}
	return nil
}
