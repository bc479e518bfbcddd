package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment order statuses. Orders are created as pending by the platform's
// checkout flow and completed exactly once by the webhook processor.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

type PaymentOrder struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	ModifiedAt time.Time

	UserID uuid.UUID

	// Rubies granted when the order completes
	Amount int64

	Status string
}

// Reconcile queue entry statuses. Entries are claimed (pending ->
// processing) when listed, so concurrent workers never replay the same
// entry; a failed replay is released back to pending.
const (
	ReconcilePending    = "pending"
	ReconcileProcessing = "processing"
	ReconcileDone       = "done"
)

// ReconcileEntry is a durable record of a ledger append that failed after
// the cache had already authorized the spend. The reconciler replays it.
type ReconcileEntry struct {
	ID        uuid.UUID
	CreatedAt time.Time

	UserID       uuid.UUID
	Amount       int64
	BalanceAfter int64

	Description   string
	ReferenceType string
	ReferenceID   string

	Status string
}
