package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samkok24/char-chat-project-sub001/internal/models"
)

type RefillRepo struct {
	DB DBTX
}

// Create state lazily on first read, anchored at now with an empty bucket
const getOrCreateState = `-- name: GetOrCreateState
WITH new_state AS (
	INSERT INTO refill_states (user_id, timer_bucket, last_refill_at)
	VALUES ($1, 0, $2)
	ON CONFLICT (user_id) DO NOTHING
	RETURNING user_id, timer_bucket, last_refill_at
)
SELECT user_id, timer_bucket, last_refill_at FROM new_state
UNION
SELECT user_id, timer_bucket, last_refill_at FROM refill_states WHERE user_id = $1
`

func (r *RefillRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, now time.Time) (models.RefillState, error) {
	rows, _ := r.DB.Query(ctx, getOrCreateState, userID, now)
	state, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.RefillState, error) {
		var s models.RefillState
		err := row.Scan(&s.UserID, &s.TimerBucket, &s.LastRefillAt)
		return s, err
	})
	if err != nil {
		return state, fmt.Errorf("db error: %w", err)
	}

	return state, nil
}

func (r *RefillRepo) Update(ctx context.Context, state models.RefillState) error {
	const updateState = `
	UPDATE refill_states
	SET timer_bucket = $2, last_refill_at = $3
	WHERE user_id = $1
	`

	tag, err := r.DB.Exec(ctx, updateState, state.UserID, state.TimerBucket, state.LastRefillAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refill state for user %s does not exist", state.UserID)
	}

	return nil
}
