package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
	"github.com/samkok24/char-chat-project-sub001/internal/models"
)

type PaymentOrderRepo struct {
	DB DBTX
}

// Create order with provided attributes
// If an order with the id already exists return it as is
const createOrder = `-- name: CreateOrder
WITH insert_order AS (
	INSERT INTO payment_orders (id, created_at, modified_at, user_id, amount, status)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT DO NOTHING
	RETURNING *
)
SELECT * FROM insert_order
UNION
SELECT * FROM payment_orders WHERE id = $1
`

func (r *PaymentOrderRepo) CreateOrder(ctx context.Context, order models.PaymentOrder) (models.PaymentOrder, error) {
	now := time.Now()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = models.PaymentPending
	}
	order.CreatedAt = now
	order.ModifiedAt = now

	rows, _ := r.DB.Query(ctx, createOrder, order.ID, order.CreatedAt, order.ModifiedAt, order.UserID, order.Amount, order.Status)
	o, err := pgx.CollectOneRow(rows, rowToOrder)
	if err != nil {
		return o, fmt.Errorf("db error: %w", err)
	}

	return o, nil
}

func (r *PaymentOrderRepo) GetOrder(ctx context.Context, orderID uuid.UUID) (models.PaymentOrder, error) {
	const getOrder = `
	SELECT id, created_at, modified_at, user_id, amount, status FROM payment_orders
	WHERE id = $1
	`

	rows, _ := r.DB.Query(ctx, getOrder, orderID)
	o, err := pgx.CollectOneRow(rows, rowToOrder)

	switch {
	case err == nil:
		return o, nil
	case errors.Is(err, pgx.ErrNoRows):
		return o, apperrors.ErrPaymentOrderNotFound
	default:
		return o, fmt.Errorf("db error: %w", err)
	}
}

// Status moves are compare-and-set so a redelivered webhook that lost the
// claim race can never complete an order twice
const setOrderStatus = `-- name: SetOrderStatus
UPDATE payment_orders
SET status = $3, modified_at = $4
WHERE id = $1 AND status = $2
RETURNING id, created_at, modified_at, user_id, amount, status
`

func (r *PaymentOrderRepo) SetStatus(ctx context.Context, orderID uuid.UUID, fromStatus string, toStatus string) (models.PaymentOrder, error) {
	rows, _ := r.DB.Query(ctx, setOrderStatus, orderID, fromStatus, toStatus, time.Now())
	o, err := pgx.CollectOneRow(rows, rowToOrder)

	switch {
	case err == nil:
		return o, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Distinguish a missing order from a status mismatch
		_, getErr := r.GetOrder(ctx, orderID)
		if getErr != nil {
			return o, getErr
		}
		return o, apperrors.ErrPaymentOrderNotPending
	default:
		return o, fmt.Errorf("db error: %w", err)
	}
}

func rowToOrder(row pgx.CollectableRow) (models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := row.Scan(&o.ID, &o.CreatedAt, &o.ModifiedAt, &o.UserID, &o.Amount, &o.Status)
	return o, err
}
