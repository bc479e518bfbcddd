// Package webhook applies externally delivered payment events at most
// once. The gateway redelivers aggressively, so a duplicate is an
// expected outcome, never an error.
package webhook

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
	"github.com/samkok24/char-chat-project-sub001/internal/service/point"
)

// Payment event statuses delivered by the gateway
const (
	EventPaid      = "paid"
	EventCancelled = "cancelled"
)

type Event struct {
	// Gateway-assigned event id, stable across redeliveries
	ID string

	OrderID uuid.UUID
	Status  string
}

type Result struct {
	AlreadyProcessed bool
	Order            models.PaymentOrder

	// Balance after the charge, only set for paid events
	Balance int64
}

type claimCache interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseClaim(ctx context.Context, key string) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	storage repository.Storage
	cache   claimCache
	logger  logger.Logger
}

func NewService(storage repository.Storage, cache claimCache, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{storage: storage, cache: cache, logger: l}
}

// CreateOrder records a pending order at checkout time. The webhook later
// completes it. Same-id retries return the existing order as is.
func (s *Service) CreateOrder(ctx context.Context, orderID uuid.UUID, userID uuid.UUID, amount int64) (models.PaymentOrder, error) {
	if amount <= 0 {
		return models.PaymentOrder{}, apperrors.ErrInvalidAmount
	}

	return s.storage.Payments().CreateOrder(ctx, models.PaymentOrder{
		ID:     orderID,
		UserID: userID,
		Amount: amount,
	})
}

// Process applies one payment event at most once.
//
// The claim is the fast dedup; the compare-and-set on the order status is
// the authoritative one, covering claim-TTL expiry racing a slow first
// processor. Any failure inside the protected section releases the claim
// so a redelivery can retry, instead of being blocked for the whole TTL.
func (s *Service) Process(ctx context.Context, event Event) (Result, error) {
	key := fmt.Sprintf("webhook:%s:%s", event.ID, event.Status)

	owned, err := s.cache.Claim(ctx, key, point.ClaimTTL)
	if err != nil {
		return Result{}, fmt.Errorf("can't claim webhook event. Err: %w", err)
	}
	if !owned {
		s.logger.Info("Webhook event already claimed", "event_id", event.ID, "status", event.Status)
		return Result{AlreadyProcessed: true}, nil
	}

	result, err := s.apply(ctx, event)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, apperrors.ErrPaymentOrderNotPending):
		// A previous processor finished after its claim expired
		s.logger.Info("Payment order already settled", "event_id", event.ID, "order_id", event.OrderID)
		return Result{AlreadyProcessed: true}, nil
	default:
		if relErr := s.cache.ReleaseClaim(ctx, key); relErr != nil {
			s.logger.Error("Failed to release webhook claim", "error", relErr, "key", key)
		}
		return result, err
	}
}

func (s *Service) apply(ctx context.Context, event Event) (Result, error) {
	var result Result

	switch event.Status {
	case EventPaid:
		err := s.storage.InTx(ctx, func(store repository.Storage) error {
			order, err := store.Payments().SetStatus(ctx, event.OrderID, models.PaymentPending, models.PaymentCompleted)
			if err != nil {
				return err
			}

			balance, err := store.Ledger().Credit(ctx, models.LedgerEntry{
				UserID:        order.UserID,
				Kind:          models.EntryKindCharge,
				Amount:        order.Amount,
				Description:   "ruby purchase",
				ReferenceType: "payment_order",
				ReferenceID:   order.ID.String(),
			})
			if err != nil {
				return err
			}

			result.Order = order
			result.Balance = balance.Amount
			return nil
		})
		if err != nil {
			return result, err
		}

		if err := s.cache.Invalidate(ctx, result.Order.UserID); err != nil {
			s.logger.Warn("Failed to invalidate balance cache", "error", err, "user_id", result.Order.UserID)
		}

		return result, nil

	case EventCancelled:
		order, err := s.storage.Payments().SetStatus(ctx, event.OrderID, models.PaymentPending, models.PaymentFailed)
		if err != nil {
			return result, err
		}

		result.Order = order
		return result, nil

	default:
		return result, fmt.Errorf("unknown payment event status %q", event.Status)
	}
}
