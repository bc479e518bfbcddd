package reconciler

import (
	"context"
	"time"

	"github.com/samkok24/char-chat-project-sub001/internal/logger"
	"github.com/samkok24/char-chat-project-sub001/internal/models"
	"github.com/samkok24/char-chat-project-sub001/internal/repository"
)

type Producer struct {
	interval  time.Duration
	batchSize int
	logger    logger.Logger
	storage   repository.Storage
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.ReconcileEntry) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				p.logger.Debug("Producer tick: claiming pending entries")

				entries, err := p.storage.Reconcile().ClaimPending(ctx, p.batchSize)
				if err != nil {
					p.logger.Error("Failed to claim pending entries", "error", err)
					continue
				}

				// Send claimed entries to the output channel
				for _, entry := range entries {
					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending entries")
						return
					case out <- entry:
						p.logger.Debug("Entry sent to channel", "entryID", entry.ID)
					}
				}
			}
		}
	}()

	return idleStopped
}
