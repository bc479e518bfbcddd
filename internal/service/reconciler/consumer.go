package reconciler

import (
	"context"
	"errors"
	"sync"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
	"github.com/samkok24/char-chat-project-sub001/internal/logger"
	"github.com/samkok24/char-chat-project-sub001/internal/models"
	"github.com/samkok24/char-chat-project-sub001/internal/repository"
)

type Consumer struct {
	countWorkers int

	storage repository.Storage
	logger  logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.ReconcileEntry) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.ReconcileEntry) {
	for {
		select {
		case <-ctx.Done():
			return

		case entry, ok := <-in:
			if !ok {
				c.logger.Debug("Consumer worker stopped, input channel closed")
				return
			}

			err := c.replay(ctx, entry)

			// The spend already reached the ledger through another path,
			// the queue entry is done
			if errors.Is(err, apperrors.ErrEntryExists) {
				c.logger.Warn("Reconcile entry already on the ledger", "entry_id", entry.ID)
				if err := c.storage.Reconcile().MarkDone(ctx, entry.ID); err != nil {
					c.logger.Error("Failed to mark reconcile entry done", "error", err, "entry_id", entry.ID)
				}
				continue
			}

			if err != nil {
				c.logger.Error("Failed to replay reconcile entry", "error", err, "entry_id", entry.ID)

				// Back to pending so a later cycle can retry it
				if relErr := c.storage.Reconcile().Release(ctx, entry.ID); relErr != nil {
					c.logger.Error("Failed to release reconcile entry", "error", relErr, "entry_id", entry.ID)
				}
				continue
			}

			c.logger.Debug("Reconcile entry replayed", "entry_id", entry.ID)
		}
	}
}

// replay appends the parked spend to the ledger and marks the queue entry
// done in the same transaction. The spend is applied as a delta against
// the current balance under a row lock: credits that landed while the
// entry sat in the queue must survive the replay. The ledger entry reuses
// the spend tx id, so replaying twice trips the primary key instead of
// double-spending.
func (c *Consumer) replay(ctx context.Context, entry models.ReconcileEntry) error {
	return c.storage.InTx(ctx, func(store repository.Storage) error {
		balance, err := store.Ledger().GetBalance(ctx, entry.UserID, true)
		if errors.Is(err, apperrors.ErrUserNotFound) {
			balance, err = store.Ledger().EnsureBalance(ctx, entry.UserID)
		}
		if err != nil {
			return err
		}

		_, err = store.Ledger().RecordUse(ctx, models.LedgerEntry{
			ID:            entry.ID,
			UserID:        entry.UserID,
			Kind:          models.EntryKindUse,
			Amount:        -entry.Amount,
			BalanceAfter:  balance.Amount - entry.Amount,
			Description:   entry.Description,
			ReferenceType: entry.ReferenceType,
			ReferenceID:   entry.ReferenceID,
		})
		if err != nil {
			return err
		}

		return store.Reconcile().MarkDone(ctx, entry.ID)
	})
}
