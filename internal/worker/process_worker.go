package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/domain"
	"github.com/notifyhub/delivery-queue/internal/processor"
)

// ProcessWorker is the periodic trigger for the batch processor. The
// processor itself runs one cycle to completion per invocation; this
// worker only supplies the cadence. Waiting for retry-eligible items
// happens through the store's next_retry_at timestamps, checked by each
// dequeue, not by in-process timers.
type ProcessWorker struct {
	proc      *processor.Processor
	interval  time.Duration
	batchSize int
	channels  []domain.Channel
	logger    *zap.Logger
}

func NewProcessWorker(
	proc *processor.Processor,
	interval time.Duration,
	batchSize int,
	channels []domain.Channel,
	logger *zap.Logger,
) *ProcessWorker {
	return &ProcessWorker{
		proc:      proc,
		interval:  interval,
		batchSize: batchSize,
		channels:  channels,
		logger:    logger,
	}
}

// Run ticks every interval and drives one processing cycle per tick.
// Stops cleanly when ctx is cancelled.
func (pw *ProcessWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	pw.logger.Info("process worker started",
		zap.Duration("interval", pw.interval),
		zap.Int("batch_size", pw.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			pw.logger.Info("process worker stopping")
			return
		case <-ticker.C:
			pw.cycle(ctx)
		}
	}
}

func (pw *ProcessWorker) cycle(ctx context.Context) {
	results, err := pw.proc.ProcessQueueWithBatches(ctx, pw.batchSize, pw.channels)
	if err != nil {
		pw.logger.Error("processing cycle error", zap.Error(err))
		return
	}

	var success, failed int
	for _, r := range results {
		success += r.Success
		failed += r.Failed
	}
	if success+failed > 0 {
		pw.logger.Info("processing cycle finished",
			zap.Int("channels", len(results)),
			zap.Int("success", success),
			zap.Int("failed", failed),
		)
	}
}
