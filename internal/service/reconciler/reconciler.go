// Package reconciler replays queued spends into the ledger. A spend whose
// ledger append failed is parked in the reconcile queue by the point
// service; the reconciler drains the queue until cache and ledger agree.
package reconciler

import (
	"context"
	"time"

	"github.com/samkok24/char-chat-project-sub001/internal/logger"
	"github.com/samkok24/char-chat-project-sub001/internal/models"
	"github.com/samkok24/char-chat-project-sub001/internal/repository"
)

const (
	defaultCountWorkers  = 4                // Number of workers to replay entries
	defaultClaimInterval = 10 * time.Second // Interval for claiming pending entries
	defaultBatchSize     = 100
)

type Reconciler struct {
	consumer *Consumer
	producer *Producer
}

func New(storage repository.Storage, logger logger.Logger) *Reconciler {
	return &Reconciler{
		consumer: &Consumer{
			countWorkers: defaultCountWorkers,
			storage:      storage,
			logger:       logger,
		},
		producer: &Producer{
			interval:  defaultClaimInterval,
			batchSize: defaultBatchSize,
			storage:   storage,
			logger:    logger,
		},
	}
}

func (r *Reconciler) Process(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	entryChan := make(chan models.ReconcileEntry)

	// Start producer to claim pending entries
	producerStopped := r.producer.Produce(ctx, entryChan)

	// Start consumer to replay them
	consumerStopped := r.consumer.Consume(ctx, entryChan)

	go func() {
		defer close(idleStopped)
		defer close(entryChan)
		<-producerStopped
		<-consumerStopped
		r.consumer.logger.Debug("Reconciler stopped")
	}()

	return idleStopped
}
