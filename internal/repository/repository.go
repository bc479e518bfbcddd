package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/models"
)

type ListEntriesOpts struct {
	// Entry kinds to include, nil for all
	Kinds []string

	Limit  int
	Offset int
}

// Ledger repository interface
// The ledger is the durable audit truth: entries are append-only, the
// balances row is reconciled on every write.
type LedgerRepo interface {
	// Get current balance for user
	// Must return apperrors.ErrUserNotFound if no balance row exists
	// With forUpdate the row is locked for the current transaction
	GetBalance(ctx context.Context, userID uuid.UUID, forUpdate bool) (models.Balance, error)

	// Create zero balance row if the user has none yet
	EnsureBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error)

	// Apply a positive entry (kind charge, bonus or refund):
	// increment the balance (creating the row lazily) and append the
	// ledger entry with balance_after filled in
	Credit(ctx context.Context, entry models.LedgerEntry) (models.Balance, error)

	// Append a use entry and reconcile the balance row to
	// entry.BalanceAfter. The cache has already authorized this spend,
	// so the amount is recorded as given, not re-checked
	RecordUse(ctx context.Context, entry models.LedgerEntry) (models.Balance, error)

	// List entries ordered by created_at descending
	ListEntries(ctx context.Context, userID uuid.UUID, opts ListEntriesOpts) ([]models.LedgerEntry, error)
}

// Refill state repository interface
type RefillRepo interface {
	// Get state, creating it lazily with an empty bucket anchored at now
	GetOrCreate(ctx context.Context, userID uuid.UUID, now time.Time) (models.RefillState, error)

	// Persist bucket and last_refill_at
	Update(ctx context.Context, state models.RefillState) error
}

// Payment order repository interface
type PaymentOrderRepo interface {
	// Create order with provided options
	// If an order with the same id exists already, return it as is
	CreateOrder(ctx context.Context, order models.PaymentOrder) (models.PaymentOrder, error)

	// Must return apperrors.ErrPaymentOrderNotFound if order not found
	GetOrder(ctx context.Context, orderID uuid.UUID) (models.PaymentOrder, error)

	// Move order between statuses atomically
	// Must return apperrors.ErrPaymentOrderNotPending when the current
	// status does not match fromStatus
	SetStatus(ctx context.Context, orderID uuid.UUID, fromStatus string, toStatus string) (models.PaymentOrder, error)
}

// Reconcile queue repository interface
type ReconcileRepo interface {
	Enqueue(ctx context.Context, entry models.ReconcileEntry) error

	// Claim up to limit pending entries (pending -> processing) and
	// return them, oldest first
	ClaimPending(ctx context.Context, limit int) ([]models.ReconcileEntry, error)

	MarkDone(ctx context.Context, entryID uuid.UUID) error

	// Put a claimed entry back to pending after a failed replay
	Release(ctx context.Context, entryID uuid.UUID) error
}

type Storage interface {
	Ledger() LedgerRepo
	Refill() RefillRepo
	Payments() PaymentOrderRepo
	Reconcile() ReconcileRepo

	// Run fn within a single database transaction
	InTx(ctx context.Context, fn func(Storage) error) error
}
