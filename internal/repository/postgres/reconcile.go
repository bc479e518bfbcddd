package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samkok24/char-chat-project-sub001/internal/models"
)

type ReconcileRepo struct {
	DB DBTX
}

func (r *ReconcileRepo) Enqueue(ctx context.Context, entry models.ReconcileEntry) error {
	const enqueue = `
	INSERT INTO reconcile_queue (id, created_at, user_id, amount, balance_after, description, reference_type, reference_id, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	_, err := r.DB.Exec(ctx, enqueue,
		entry.ID, time.Now(), entry.UserID, entry.Amount, entry.BalanceAfter,
		entry.Description, entry.ReferenceType, entry.ReferenceID, models.ReconcilePending,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// Claim entries atomically so concurrent producers never hand the same
// entry to two workers
const claimPending = `-- name: ClaimPending
UPDATE reconcile_queue
SET status = 'processing'
WHERE id IN (
	SELECT id FROM reconcile_queue
	WHERE status = 'pending'
	ORDER BY created_at
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, created_at, user_id, amount, balance_after, description, reference_type, reference_id, status
`

func (r *ReconcileRepo) ClaimPending(ctx context.Context, limit int) ([]models.ReconcileEntry, error) {
	rows, _ := r.DB.Query(ctx, claimPending, limit)
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ReconcileEntry, error) {
		var e models.ReconcileEntry
		err := row.Scan(&e.ID, &e.CreatedAt, &e.UserID, &e.Amount, &e.BalanceAfter, &e.Description, &e.ReferenceType, &e.ReferenceID, &e.Status)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return entries, nil
}

func (r *ReconcileRepo) MarkDone(ctx context.Context, entryID uuid.UUID) error {
	return r.setStatus(ctx, entryID, models.ReconcileDone)
}

func (r *ReconcileRepo) Release(ctx context.Context, entryID uuid.UUID) error {
	return r.setStatus(ctx, entryID, models.ReconcilePending)
}

func (r *ReconcileRepo) setStatus(ctx context.Context, entryID uuid.UUID, status string) error {
	const setStatus = `
	UPDATE reconcile_queue SET status = $2 WHERE id = $1
	`

	tag, err := r.DB.Exec(ctx, setStatus, entryID, status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reconcile entry %s does not exist", entryID)
	}

	return nil
}
