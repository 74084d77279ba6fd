// Package events publishes expense lifecycle messages for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"expenses-server/src/models"
)

const (
	ExpenseCreated = "expense.created"
	ExpenseDeleted = "expense.deleted"
)

type Event struct {
	Type       string         `json:"type"`
	Expense    models.Expense `json:"expense"`
	OccurredAt time.Time      `json:"occurredAt"`
}

func New(eventType string, e models.Expense) Event {
	return Event{Type: eventType, Expense: e, OccurredAt: time.Now().UTC()}
}

func (e Event) ToJSON() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return b, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
