package events

import (
	"context"
	"time"
)

type Type string

const (
	AccountCreated Type = "account.created"
	AccountClosed  Type = "account.closed"
	AccountDeleted Type = "account.deleted"
)

// AccountEvent describes a completed lifecycle write.
type AccountEvent struct {
	Type          Type      `json:"type"`
	AccountID     string    `json:"account_id"`
	AccountNumber string    `json:"account_number,omitempty"`
	OwnerID       string    `json:"owner_id,omitempty"`
	OwnerName     string    `json:"owner_name,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event AccountEvent) error
	Close() error
}
