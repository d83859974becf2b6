package events

import (
	"context"

	"github.com/leafybank/backend/internal/common/logger"
)

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, event AccountEvent) error {
	p.log.WithFields(ctx, logger.Fields{
		"event":      string(event.Type),
		"account_id": event.AccountID,
		"owner_id":   event.OwnerID,
		"action":     "event_logged",
	}).Info("account event")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
