package apperrors

import (
	"errors"
)

var (
	ErrUserNotFound = errors.New("user not found")

	ErrBalanceInsufficient = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")

	// Returned by the spend script when no balance is cached for the user.
	// The facade reseeds from the ledger and retries exactly once.
	ErrCacheMiss        = errors.New("balance not cached")
	ErrCacheUnavailable = errors.New("balance cache unavailable")

	// Expected outcome for redelivered webhook events, not a failure
	ErrAlreadyProcessed = errors.New("event already processed")

	ErrLockNotAcquired = errors.New("refill lock not acquired")

	// A ledger entry with the same tx id is already recorded. Spends keep
	// their tx id through the reconcile queue, so a replay of an entry
	// that already landed surfaces as this instead of a double spend.
	ErrEntryExists = errors.New("ledger entry already recorded")

	ErrPaymentOrderNotFound   = errors.New("payment order not found")
	ErrPaymentOrderNotPending = errors.New("payment order is not pending")

	ErrUnknownModel = errors.New("unknown model id")
)
