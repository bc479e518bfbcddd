package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry kinds. The ledger is append-only: every balance change is
// recorded as one signed entry and the balance row is reconciled to match.
const (
	EntryKindCharge = "charge"
	EntryKindUse    = "use"
	EntryKindBonus  = "bonus"
	EntryKindRefund = "refund"
)

type Balance struct {
	ID     uuid.UUID
	UserID uuid.UUID

	// Ruby is an integer unit, no fractional part exists
	Amount    int64
	UpdatedAt time.Time
}

type LedgerEntry struct {
	ID     uuid.UUID
	UserID uuid.UUID

	Kind string

	// Signed: positive for charge/bonus/refund, negative for use
	Amount       int64
	BalanceAfter int64

	Description   string
	ReferenceType string
	ReferenceID   string

	CreatedAt time.Time
}

// RefillState tracks the time-regenerated free allowance ("timer bucket").
// Mutated only by the refill scheduler while holding the per-user lock.
type RefillState struct {
	UserID       uuid.UUID
	TimerBucket  int
	LastRefillAt time.Time
}

type TimerStatus struct {
	Current int
	Max     int

	// Intervals credited by this read, 0 on lock contention
	Earned int

	// Seconds until the next interval completes, 0 when Current == Max
	NextRefillSeconds int64
}

// SpendReceipt is returned by a successful atomic spend.
type SpendReceipt struct {
	TxID    uuid.UUID
	Balance int64
}
