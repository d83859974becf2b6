package service

import (
	"context"

	"github.com/leafybank/backend/internal/account/domain"
	"github.com/leafybank/backend/internal/common/constants"
	"github.com/leafybank/backend/internal/common/events"
	"github.com/leafybank/backend/internal/common/logger"
	"github.com/leafybank/backend/internal/common/objectid"
)

// publish emits a lifecycle event after the write it describes has
// succeeded. Failures are logged and never change the operation result.
func (s *AccountService) publish(ctx context.Context, eventType events.Type, id objectid.ID, account *domain.Account) {
	if s.events == nil {
		return
	}

	event := events.AccountEvent{
		Type:       eventType,
		AccountID:  id.String(),
		OccurredAt: s.clock.Now(),
	}
	if account != nil {
		event.AccountNumber = account.AccountNumber
		event.OwnerID = account.AccountUser.UserID.String()
		event.OwnerName = account.AccountUser.UserName
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultEventPublishTimeout)
	defer cancel()

	if err := s.events.Publish(pubCtx, event); err != nil {
		incrementEventsPublished(string(eventType), "failure")
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"event":      string(eventType),
			"action":     "account_event_failed",
		}).Warnf("publish account event failed: %v", err)
		return
	}
	incrementEventsPublished(string(eventType), "success")
}
