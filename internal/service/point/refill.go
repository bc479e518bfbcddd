package point

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
	"github.com/samkok24/char-chat-project-sub001/internal/models"
	"github.com/samkok24/char-chat-project-sub001/internal/repository"
)

// GetTimerStatus reports the timer allowance and lazily credits whole
// elapsed intervals. There is no background scheduler: crediting happens
// on read, guarded by a short per-user lock. Contention is not an error,
// the losing reader just reports earned = 0 from persisted state.
func (s *PointService) GetTimerStatus(ctx context.Context, userID uuid.UUID) (models.TimerStatus, error) {
	status := models.TimerStatus{Max: TimerMax}
	now := s.now()

	state, err := s.storage.Refill().GetOrCreate(ctx, userID, now)
	if err != nil {
		return status, fmt.Errorf("can't read refill state. Err: %w", err)
	}

	release, err := s.cache.TryRefillLock(ctx, userID, refillLockTTL)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrLockNotAcquired):
		status.Current = state.TimerBucket
		status.NextRefillSeconds = nextRefillSeconds(state, now)
		return status, nil
	default:
		s.logger.Warn("Refill lock unavailable, skipping credit", "error", err, "user_id", userID)
		status.Current = state.TimerBucket
		status.NextRefillSeconds = nextRefillSeconds(state, now)
		return status, nil
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logger.Warn("Failed to release refill lock", "error", err, "user_id", userID)
		}
	}()

	// Re-read under the lock: another reader may have credited between
	// the first read and acquiring the lock
	state, err = s.storage.Refill().GetOrCreate(ctx, userID, now)
	if err != nil {
		return status, fmt.Errorf("can't read refill state. Err: %w", err)
	}

	earned := int64(now.Sub(state.LastRefillAt) / RefillInterval)
	if capacity := int64(TimerMax - state.TimerBucket); earned > capacity {
		earned = capacity
	}
	if earned < 0 {
		earned = 0
	}

	if earned > 0 {
		state.TimerBucket += int(earned)
		// Advance by whole intervals, never to now: fractional progress
		// toward the next ruby is kept
		state.LastRefillAt = state.LastRefillAt.Add(time.Duration(earned) * RefillInterval)

		err = s.storage.InTx(ctx, func(store repository.Storage) error {
			_, err := store.Ledger().Credit(ctx, models.LedgerEntry{
				UserID:        userID,
				Kind:          models.EntryKindBonus,
				Amount:        earned,
				Description:   "timer refill",
				ReferenceType: "refill",
			})
			if err != nil {
				return err
			}

			return store.Refill().Update(ctx, state)
		})
		if err != nil {
			return status, fmt.Errorf("can't credit refill. Err: %w", err)
		}

		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("Failed to invalidate balance cache", "error", err, "user_id", userID)
		}
	}

	status.Current = state.TimerBucket
	status.Earned = int(earned)
	status.NextRefillSeconds = nextRefillSeconds(state, now)

	return status, nil
}

func nextRefillSeconds(state models.RefillState, now time.Time) int64 {
	if state.TimerBucket >= TimerMax {
		return 0
	}

	elapsed := now.Sub(state.LastRefillAt)
	if elapsed < 0 {
		return int64(RefillInterval / time.Second)
	}

	remaining := RefillInterval - elapsed%RefillInterval
	return int64(remaining / time.Second)
}
