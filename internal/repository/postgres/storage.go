package postgres

import (
	"context"
	"fmt"

	"github.com/samkok24/char-chat-project-sub001/internal/repository"
)

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) Ledger() repository.LedgerRepo {
	return &LedgerRepo{DB: s.db}
}

func (s *Storage) Refill() repository.RefillRepo {
	return &RefillRepo{DB: s.db}
}

func (s *Storage) Payments() repository.PaymentOrderRepo {
	return &PaymentOrderRepo{DB: s.db}
}

func (s *Storage) Reconcile() repository.ReconcileRepo {
	return &ReconcileRepo{DB: s.db}
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
