package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
	"github.com/samkok24/char-chat-project-sub001/internal/models"
	"github.com/samkok24/char-chat-project-sub001/internal/repository"
)

type LedgerRepo struct {
	DB DBTX
}

func (r *LedgerRepo) GetBalance(ctx context.Context, userID uuid.UUID, forUpdate bool) (models.Balance, error) {
	getBalance := `
	SELECT id, user_id, amount, updated_at FROM balances
	WHERE user_id = $1
	`
	if forUpdate {
		getBalance += " FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, getBalance, userID)
	balance, err := pgx.CollectOneRow(rows, rowToBalance)

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return balance, apperrors.ErrUserNotFound
	default:
		return balance, fmt.Errorf("db error: %w", err)
	}
}

// Create zero balance if the user has none yet, return the row either way
const ensureBalance = `-- name: EnsureBalance
WITH new_balance AS (
	INSERT INTO balances (id, user_id, amount, updated_at)
	VALUES ($1, $2, 0, $3)
	ON CONFLICT (user_id) DO NOTHING
	RETURNING id, user_id, amount, updated_at
)
SELECT id, user_id, amount, updated_at FROM new_balance
UNION
SELECT id, user_id, amount, updated_at FROM balances WHERE user_id = $2
`

func (r *LedgerRepo) EnsureBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error) {
	rows, _ := r.DB.Query(ctx, ensureBalance, uuid.New(), userID, time.Now())
	balance, err := pgx.CollectOneRow(rows, rowToBalance)
	if err != nil {
		return balance, fmt.Errorf("db error: %w", err)
	}

	return balance, nil
}

const upsertCredit = `-- name: Credit
INSERT INTO balances (id, user_id, amount, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET amount = balances.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at
RETURNING id, user_id, amount, updated_at
`

const insertEntry = `-- name: CreateEntry
INSERT INTO ledger_entries (id, user_id, kind, amount, balance_after, description, reference_type, reference_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (r *LedgerRepo) Credit(ctx context.Context, entry models.LedgerEntry) (models.Balance, error) {
	var balance models.Balance

	if entry.Amount <= 0 {
		return balance, apperrors.ErrInvalidAmount
	}

	now := time.Now()

	rows, _ := r.DB.Query(ctx, upsertCredit, uuid.New(), entry.UserID, entry.Amount, now)
	balance, err := pgx.CollectOneRow(rows, rowToBalance)
	if err != nil {
		return balance, fmt.Errorf("db error: %w", err)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	_, err = r.DB.Exec(ctx, insertEntry,
		entry.ID, entry.UserID, entry.Kind, entry.Amount, balance.Amount,
		entry.Description, entry.ReferenceType, entry.ReferenceID, now,
	)
	if err != nil {
		return balance, fmt.Errorf("db error: %w", err)
	}

	return balance, nil
}

const reconcileUse = `-- name: ReconcileUse
UPDATE balances
SET amount = $2, updated_at = $3
WHERE user_id = $1
RETURNING id, user_id, amount, updated_at
`

func (r *LedgerRepo) RecordUse(ctx context.Context, entry models.LedgerEntry) (models.Balance, error) {
	var balance models.Balance

	if entry.Amount >= 0 {
		return balance, apperrors.ErrInvalidAmount
	}

	now := time.Now()

	rows, _ := r.DB.Query(ctx, reconcileUse, entry.UserID, entry.BalanceAfter, now)
	balance, err := pgx.CollectOneRow(rows, rowToBalance)

	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		return balance, apperrors.ErrUserNotFound
	default:
		return balance, fmt.Errorf("db error: %w", err)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	_, err = r.DB.Exec(ctx, insertEntry,
		entry.ID, entry.UserID, entry.Kind, entry.Amount, entry.BalanceAfter,
		entry.Description, entry.ReferenceType, entry.ReferenceID, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return balance, apperrors.ErrEntryExists
		}

		return balance, fmt.Errorf("db error: %w", err)
	}

	return balance, nil
}

const listEntries = `-- name: ListEntries
SELECT id, user_id, kind, amount, balance_after, description, reference_type, reference_id, created_at
FROM ledger_entries
WHERE user_id = $1 AND ($2::text[] IS NULL OR kind = ANY($2))
ORDER BY created_at DESC
LIMIT NULLIF($3, 0) OFFSET $4
`

func (r *LedgerRepo) ListEntries(ctx context.Context, userID uuid.UUID, opts repository.ListEntriesOpts) ([]models.LedgerEntry, error) {
	rows, _ := r.DB.Query(ctx, listEntries, userID, opts.Kinds, opts.Limit, opts.Offset)
	entries, err := pgx.CollectRows(rows, rowToEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return entries, nil
}

func rowToBalance(row pgx.CollectableRow) (models.Balance, error) {
	var b models.Balance
	err := row.Scan(&b.ID, &b.UserID, &b.Amount, &b.UpdatedAt)
	return b, err
}

func rowToEntry(row pgx.CollectableRow) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.BalanceAfter, &e.Description, &e.ReferenceType, &e.ReferenceID, &e.CreatedAt)
	return e, err
}
