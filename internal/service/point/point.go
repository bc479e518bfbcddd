// Package point is the only entry point for balance-affecting operations:
// chat-turn deduction, charges, refunds, the daily check-in bonus and the
// timer refill. The cache authorizes spends first, the ledger catches up.
package point

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
	"github.com/samkok24/char-chat-project-sub001/internal/logger"
	"github.com/samkok24/char-chat-project-sub001/internal/models"
	"github.com/samkok24/char-chat-project-sub001/internal/repository"
	"github.com/samkok24/char-chat-project-sub001/internal/rubycache"
)

// Cache operations the facade needs. *rubycache.Cache satisfies this.
type rubyCache interface {
	Spend(ctx context.Context, userID uuid.UUID, amount int64, record rubycache.SpendRecord) (int64, error)
	Seed(ctx context.Context, userID uuid.UUID, amount int64, ttl time.Duration) (bool, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	Invalidate(ctx context.Context, userID uuid.UUID) error
	RecentSpends(ctx context.Context, userID uuid.UUID) ([]rubycache.SpendRecord, error)
	TryRefillLock(ctx context.Context, userID uuid.UUID, ttl time.Duration) (func(context.Context) error, error)
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseClaim(ctx context.Context, key string) error
}

type PointService struct {
	storage repository.Storage
	cache   rubyCache
	logger  logger.Logger

	// Injected so refill and check-in math is testable without sleeping
	now func() time.Time
}

func NewService(storage repository.Storage, cache rubyCache, l logger.Logger) *PointService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &PointService{
		storage: storage,
		cache:   cache,
		logger:  l,
		now:     time.Now,
	}
}

// GetBalance returns the current balance, 0 for users without any history.
// Serves from the cache when possible, reseeding it from the ledger on a
// miss.
func (s *PointService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	amount, err := s.cache.Balance(ctx, userID)
	if err == nil {
		return amount, nil
	}
	if !errors.Is(err, apperrors.ErrCacheMiss) {
		s.logger.Warn("Balance cache unavailable, reading ledger", "error", err, "user_id", userID)
	}

	return s.seedFromLedger(ctx, userID)
}

// seedFromLedger reads the authoritative balance and caches it with a
// short TTL. Missing balance rows read as zero, a valid steady state.
// The seed only lands when no balance is cached; if another reader seeded
// in the meantime the cached value is the live one and wins.
func (s *PointService) seedFromLedger(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, err := s.storage.Ledger().GetBalance(ctx, userID, false)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		balance.Amount = 0
	default:
		return 0, fmt.Errorf("can't read ledger balance. Err: %w", err)
	}

	seeded, err := s.cache.Seed(ctx, userID, balance.Amount, balanceTTL)
	if err != nil {
		s.logger.Warn("Failed to seed balance cache", "error", err, "user_id", userID)
		return balance.Amount, nil
	}

	if !seeded {
		if cached, err := s.cache.Balance(ctx, userID); err == nil {
			return cached, nil
		}
	}

	return balance.Amount, nil
}

func (s *PointService) ChargePoints(ctx context.Context, userID uuid.UUID, amount int64, description string, refType string, refID string) (int64, error) {
	return s.credit(ctx, userID, amount, models.EntryKindCharge, description, refType, refID)
}

// RefundPoints is the charge path with marked provenance.
func (s *PointService) RefundPoints(ctx context.Context, userID uuid.UUID, amount int64, description string, refType string, refID string) (int64, error) {
	return s.credit(ctx, userID, amount, models.EntryKindRefund, "refund: "+description, refType, refID)
}

func (s *PointService) credit(ctx context.Context, userID uuid.UUID, amount int64, kind string, description string, refType string, refID string) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}

	var balance models.Balance
	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		balance, err = store.Ledger().Credit(ctx, models.LedgerEntry{
			UserID:        userID,
			Kind:          kind,
			Amount:        amount,
			Description:   description,
			ReferenceType: refType,
			ReferenceID:   refID,
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("can't credit points. Err: %w", err)
	}

	// Drop the cached value instead of writing the new one: a concurrent
	// spend may already hold a newer balance, the next read reseeds
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("Failed to invalidate balance cache", "error", err, "user_id", userID)
	}

	return balance.Amount, nil
}

// UsePointsAtomic spends against the cached balance as one atomic
// check-and-decrement. On apperrors.ErrBalanceInsufficient the receipt
// carries the current balance. On a cache miss the balance is reseeded
// from the ledger and the spend retried exactly once.
func (s *PointService) UsePointsAtomic(ctx context.Context, userID uuid.UUID, amount int64, reason string, refType string, refID string) (models.SpendReceipt, error) {
	var receipt models.SpendReceipt

	if amount <= 0 {
		return receipt, apperrors.ErrInvalidAmount
	}

	txID := uuid.New()
	record := rubycache.SpendRecord{TxID: txID, Amount: amount, Reason: reason, At: s.now()}

	balance, err := s.cache.Spend(ctx, userID, amount, record)
	if errors.Is(err, apperrors.ErrCacheMiss) {
		if _, seedErr := s.seedFromLedger(ctx, userID); seedErr != nil {
			return receipt, seedErr
		}

		balance, err = s.cache.Spend(ctx, userID, amount, record)
		if errors.Is(err, apperrors.ErrCacheMiss) {
			// Second miss right after a reseed, do not loop
			return receipt, fmt.Errorf("balance cache lost the seed for user %s", userID)
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrBalanceInsufficient):
		receipt.Balance = balance
		return receipt, err
	case errors.Is(err, apperrors.ErrCacheUnavailable):
		s.logger.Warn("Balance cache unavailable, spending against the ledger", "error", err, "user_id", userID)
		return s.spendViaLedger(ctx, userID, amount, txID, reason, refType, refID)
	default:
		return receipt, err
	}

	receipt.TxID = txID
	receipt.Balance = balance

	// The spend is authorized, the ledger catches up. A failed append
	// lands in the durable reconcile queue and is replayed by the
	// reconciler; the returned result stands either way.
	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		_, err := store.Ledger().RecordUse(ctx, models.LedgerEntry{
			ID:            txID,
			UserID:        userID,
			Kind:          models.EntryKindUse,
			Amount:        -amount,
			BalanceAfter:  balance,
			Description:   reason,
			ReferenceType: refType,
			ReferenceID:   refID,
		})
		return err
	})
	if err != nil {
		s.logger.Error("Ledger append failed after authorized spend", "error", err, "user_id", userID, "tx_id", txID)

		qErr := s.storage.Reconcile().Enqueue(ctx, models.ReconcileEntry{
			ID:            txID,
			UserID:        userID,
			Amount:        amount,
			BalanceAfter:  balance,
			Description:   reason,
			ReferenceType: refType,
			ReferenceID:   refID,
		})
		if qErr != nil {
			s.logger.Error("Failed to queue reconcile entry, ledger drifts until next reseed", "error", qErr, "user_id", userID, "tx_id", txID)
		}
	}

	return receipt, nil
}

// spendViaLedger is the degraded path when Redis is down: slower, but the
// row lock serializes concurrent spends just as strictly.
func (s *PointService) spendViaLedger(ctx context.Context, userID uuid.UUID, amount int64, txID uuid.UUID, reason string, refType string, refID string) (models.SpendReceipt, error) {
	var receipt models.SpendReceipt

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		balance, err := store.Ledger().GetBalance(ctx, userID, true)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			balance.Amount = 0
		default:
			return err
		}

		if balance.Amount < amount {
			receipt.Balance = balance.Amount
			return apperrors.ErrBalanceInsufficient
		}

		updated, err := store.Ledger().RecordUse(ctx, models.LedgerEntry{
			ID:            txID,
			UserID:        userID,
			Kind:          models.EntryKindUse,
			Amount:        -amount,
			BalanceAfter:  balance.Amount - amount,
			Description:   reason,
			ReferenceType: refType,
			ReferenceID:   refID,
		})
		if err != nil {
			return err
		}

		receipt.TxID = txID
		receipt.Balance = updated.Amount
		return nil
	})
	if err != nil {
		return receipt, err
	}

	return receipt, nil
}

// Transactions lists ledger entries, newest first.
func (s *PointService) Transactions(ctx context.Context, userID uuid.UUID, kinds []string, limit int, offset int) ([]models.LedgerEntry, error) {
	return s.storage.Ledger().ListEntries(ctx, userID, repository.ListEntriesOpts{
		Kinds:  kinds,
		Limit:  limit,
		Offset: offset,
	})
}

// RecentSpends returns the advisory recent-spend ring for support lookups.
func (s *PointService) RecentSpends(ctx context.Context, userID uuid.UUID) ([]rubycache.SpendRecord, error) {
	return s.cache.RecentSpends(ctx, userID)
}

// DeductChatTurn charges the fixed cost of one turn for the model.
// Zero-cost models succeed without touching the cache or the ledger.
func (s *PointService) DeductChatTurn(ctx context.Context, userID uuid.UUID, modelID string) (models.SpendReceipt, int64, error) {
	cost, err := ChatTurnCost(modelID)
	if err != nil {
		return models.SpendReceipt{}, 0, err
	}
	if cost == 0 {
		return models.SpendReceipt{}, 0, nil
	}

	receipt, err := s.UsePointsAtomic(ctx, userID, cost, "chat turn: "+modelID, "chat_model", modelID)
	return receipt, cost, err
}

// RefundChatTurn is the compensating action the caller invokes when the
// model call fails after a successful deduction. Not an automatic
// rollback: the caller decides.
func (s *PointService) RefundChatTurn(ctx context.Context, userID uuid.UUID, modelID string, txID uuid.UUID) (int64, error) {
	cost, err := ChatTurnCost(modelID)
	if err != nil {
		return 0, err
	}
	if cost == 0 {
		return 0, nil
	}

	_, err = s.RefundPoints(ctx, userID, cost, "chat turn: "+modelID, "ledger_tx", txID.String())
	if err != nil {
		return 0, err
	}

	return cost, nil
}
