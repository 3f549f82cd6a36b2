// Package events publishes ledger events for downstream consumers.
package events

import (
	"context"
	"time"
)

const (
	SaleCommitted   = "sale.committed"
	SaleReturned    = "sale.returned"
	ExpenseRecorded = "expense.recorded"
)

// Envelope is the JSON body written for every event.
type Envelope struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, key string, payload any) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ string, _ string, _ any) error {
	return nil
}
