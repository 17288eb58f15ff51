// Package jobs provides the scheduling and work-queue plumbing the background
// sweeps run on: cron triggers, a fan-out queue for per-item work and a
// per-key throttle for consumers.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"spendwise/internal/uuid"
)

// Kind identifies what a work item asks the consumer to do.
type Kind string

// KindRecurringTransaction asks the consumer to generate the next occurrence
// of a recurring transaction.
const KindRecurringTransaction Kind = "recurring-transaction"

// ErrQueueClosed is returned when enqueuing on a closed queue.
var ErrQueueClosed = errors.New("work queue closed")

// WorkItem is one unit of asynchronous processing. Items carry ids only; the
// consumer re-reads state from the store.
type WorkItem struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Attempt       int       `json:"attempt"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// NewRecurringWorkItem builds the work item for one due recurring transaction.
func NewRecurringWorkItem(transactionID, userID string) WorkItem {
	return WorkItem{
		ID:            uuid.New(),
		Kind:          KindRecurringTransaction,
		TransactionID: transactionID,
		UserID:        userID,
		EnqueuedAt:    time.Now().UTC(),
	}
}

// Key is the throttling key; work is throttled per owning user.
func (w WorkItem) Key() string {
	return w.UserID
}

// Marshal encodes the item for the wire.
func (w WorkItem) Marshal() ([]byte, error) {
	return json.Marshal(w)
}

// UnmarshalWorkItem decodes an item from the wire.
func UnmarshalWorkItem(data []byte) (WorkItem, error) {
	var w WorkItem
	if err := json.Unmarshal(data, &w); err != nil {
		return WorkItem{}, err
	}
	if w.Kind == "" || w.TransactionID == "" {
		return WorkItem{}, errors.New("work item missing kind or transaction id")
	}
	return w, nil
}

// Handler processes one work item. A non-nil error asks the queue to retry.
type Handler func(ctx context.Context, item WorkItem) error

// Enqueuer is the producer side of a work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, items ...WorkItem) error
}

// WorkQueue is a fan-out queue with at-least-once delivery.
type WorkQueue interface {
	Enqueuer
	// Consume delivers items to handler until ctx is cancelled.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
