package listings

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yrdly/platform/internal/metrics"
	"github.com/yrdly/platform/internal/retry"
)

// markJob is one pending mark-as-sold side effect.
type markJob struct {
	ItemID        string
	TransactionID string
	BuyerID       string
}

// Queue retries mark-as-sold side effects after payment verification. The
// buyer already sees "payment verified" at that point; a marking failure
// must never surface to them, only retry here.
type Queue struct {
	service     *Service
	logger      *slog.Logger
	jobs        chan markJob
	maxAttempts int
	baseDelay   time.Duration
	stop        chan struct{}
}

// NewQueue creates a mark-as-sold queue.
func NewQueue(service *Service, logger *slog.Logger, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Queue{
		service:     service,
		logger:      logger,
		jobs:        make(chan markJob, 256),
		maxAttempts: maxAttempts,
		baseDelay:   time.Second,
		stop:        make(chan struct{}),
	}
}

// Enqueue queues an item for mark-as-sold processing. Never blocks the
// caller: if the queue is full the job is dropped with an error log, and a
// later verification retry will re-enqueue it.
func (q *Queue) Enqueue(itemID, transactionID, buyerID string) {
	select {
	case q.jobs <- markJob{ItemID: itemID, TransactionID: transactionID, BuyerID: buyerID}:
		metrics.MarkSoldQueueDepth.Set(float64(len(q.jobs)))
	default:
		metrics.MarkSoldAttemptsTotal.WithLabelValues("dropped").Inc()
		q.logger.Error("mark-sold queue full, dropping job",
			"itemId", itemID, "transactionId", transactionID)
	}
}

// Start begins the processing loop. Call in a goroutine.
func (q *Queue) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case job := <-q.jobs:
			metrics.MarkSoldQueueDepth.Set(float64(len(q.jobs)))
			q.process(ctx, job)
		}
	}
}

// Stop signals the queue to stop.
func (q *Queue) Stop() {
	select {
	case q.stop <- struct{}{}:
	default:
	}
}

func (q *Queue) process(ctx context.Context, job markJob) {
	err := retry.Do(ctx, q.maxAttempts, q.baseDelay, func() error {
		err := q.service.MarkItemAsSold(ctx, job.ItemID, job.TransactionID, job.BuyerID)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadySold) {
			// Retrying will not change either outcome.
			return retry.Permanent(err)
		}
		return err
	})

	switch {
	case err == nil:
		metrics.MarkSoldAttemptsTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrAlreadySold):
		metrics.MarkSoldAttemptsTotal.WithLabelValues("conflict").Inc()
		q.logger.Warn("item sold in a different transaction",
			"itemId", job.ItemID, "transactionId", job.TransactionID)
	case errors.Is(err, ErrNotFound):
		metrics.MarkSoldAttemptsTotal.WithLabelValues("missing").Inc()
		q.logger.Warn("paid item no longer exists",
			"itemId", job.ItemID, "transactionId", job.TransactionID)
	default:
		metrics.MarkSoldAttemptsTotal.WithLabelValues("failed").Inc()
		q.logger.Error("mark-sold failed after retries",
			"itemId", job.ItemID, "transactionId", job.TransactionID, "error", err)
	}
}
