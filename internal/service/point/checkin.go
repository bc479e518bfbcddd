package point

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/models"
)

// Calendar days are scoped to fixed UTC+9, independent of tzdata
var kst = time.FixedZone("KST", 9*60*60)

type CheckInResult struct {
	AlreadyCheckedIn bool
	Balance          int64
	Reward           int64
}

// DailyCheckIn grants the fixed bonus once per KST calendar day. The
// per-day claim expires at KST midnight, so no cleanup is needed; a
// failed grant releases the claim so the user can retry the same day.
func (s *PointService) DailyCheckIn(ctx context.Context, userID uuid.UUID) (CheckInResult, error) {
	var result CheckInResult

	now := s.now().In(kst)
	day := now.Format("2006-01-02")
	key := fmt.Sprintf("checkin:%s:%s", userID, day)

	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, kst).AddDate(0, 0, 1)

	owned, err := s.cache.Claim(ctx, key, endOfDay.Sub(now))
	if err != nil {
		return result, fmt.Errorf("can't claim check-in. Err: %w", err)
	}

	if !owned {
		balance, err := s.GetBalance(ctx, userID)
		if err != nil {
			return result, err
		}

		result.AlreadyCheckedIn = true
		result.Balance = balance
		return result, nil
	}

	balance, err := s.credit(ctx, userID, CheckInReward, models.EntryKindBonus, "daily check-in", "checkin", day)
	if err != nil {
		if relErr := s.cache.ReleaseClaim(ctx, key); relErr != nil {
			s.logger.Error("Failed to release check-in claim", "error", relErr, "key", key)
		}
		return result, err
	}

	result.Balance = balance
	result.Reward = CheckInReward
	return result, nil
}
