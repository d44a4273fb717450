package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/adapter"
	"github.com/notifyhub/delivery-queue/internal/domain"
	"github.com/notifyhub/delivery-queue/internal/ratelimiter"
	"github.com/notifyhub/delivery-queue/internal/store"
)

// MetricHooks carries the metric callbacks injected by main. Using a
// struct keeps the constructor signature clean and the processor free
// of prometheus imports.
type MetricHooks struct {
	OnCompleted func(channel domain.Channel, latency time.Duration)
	OnFailed    func(channel domain.Channel)
}

// Processor drives the claim, dispatch, report cycle. It holds no item
// state of its own: all transitions go through the store, and failures
// inside one item never abort the rest of a batch or cycle.
type Processor struct {
	store    store.Store
	adapters *adapter.Registry
	limiter  *ratelimiter.ChannelLimiters
	logger   *zap.Logger
	hooks    MetricHooks
}

func New(
	st store.Store,
	adapters *adapter.Registry,
	limiter *ratelimiter.ChannelLimiters,
	logger *zap.Logger,
	hooks MetricHooks,
) *Processor {
	if hooks.OnCompleted == nil {
		hooks.OnCompleted = func(domain.Channel, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.Channel) {}
	}
	return &Processor{store: st, adapters: adapters, limiter: limiter, logger: logger, hooks: hooks}
}

// ProcessQueue claims up to limit items across all channels, delivers
// each one individually, and reports the outcome per item.
func (p *Processor) ProcessQueue(ctx context.Context, limit int) (*ProcessResult, error) {
	items, err := p.store.Dequeue(ctx, limit)
	if err != nil {
		p.logger.Error("dequeue failed", zap.Error(err))
		return nil, err
	}

	result := &ProcessResult{}
	for _, item := range items {
		res := p.deliver(ctx, item)
		if res.Success {
			result.Success++
			if err := p.store.MarkCompleted(ctx, item.ID, res.Duration); err != nil {
				p.logger.Error("mark completed failed",
					zap.String("id", item.ID), zap.Error(err))
			}
			p.hooks.OnCompleted(item.Channel, res.Duration)
		} else {
			result.Failed++
			if err := p.store.MarkFailed(ctx, item.ID, res.Error); err != nil {
				p.logger.Error("mark failed errored",
					zap.String("id", item.ID), zap.Error(err))
			}
			p.hooks.OnFailed(item.Channel)
		}
	}
	return result, nil
}

// ProcessQueueWithBatches claims one batch per requested channel and
// reports outcomes in bulk. This is the throughput-oriented path and
// the preferred production entry point. Channels with no eligible items
// produce no entry in the returned map.
func (p *Processor) ProcessQueueWithBatches(
	ctx context.Context,
	batchSize int,
	channels []domain.Channel,
) (map[domain.Channel]*BatchResult, error) {
	if len(channels) == 0 {
		channels = domain.Channels()
	}

	results := make(map[domain.Channel]*BatchResult)
	for _, ch := range channels {
		batch, err := p.store.DequeueBatch(ctx, batchSize, ch)
		if err != nil {
			// A storage outage on one channel's claim must not stop the
			// other channels' batches.
			p.logger.Error("dequeue batch failed",
				zap.String("channel", string(ch)), zap.Error(err))
			continue
		}
		if batch == nil {
			continue
		}
		results[ch] = p.processBatch(ctx, ch, batch)
	}
	return results, nil
}

func (p *Processor) processBatch(ctx context.Context, ch domain.Channel, batch *domain.ClaimedBatch) *BatchResult {
	result := &BatchResult{
		BatchID: batch.BatchID,
		Channel: ch,
		Items:   make([]ItemResult, 0, len(batch.Items)),
	}

	var completedIDs []string
	times := make(map[string]time.Duration)
	var failures []domain.ItemFailure

	for _, item := range batch.Items {
		res := p.deliver(ctx, item)
		result.Items = append(result.Items, res)
		result.TotalProcessingTime += res.Duration

		if res.Success {
			result.Success++
			completedIDs = append(completedIDs, item.ID)
			times[item.ID] = res.Duration
			p.hooks.OnCompleted(ch, res.Duration)
		} else {
			result.Failed++
			failures = append(failures, domain.ItemFailure{ID: item.ID, Reason: res.Error})
			p.hooks.OnFailed(ch)
		}
	}

	if len(batch.Items) > 0 {
		result.AvgProcessingTime = result.TotalProcessingTime / time.Duration(len(batch.Items))
	}

	if len(completedIDs) > 0 {
		if err := p.store.MarkBatchCompleted(ctx, completedIDs, times); err != nil {
			p.logger.Error("bulk completion failed",
				zap.String("batch_id", batch.BatchID), zap.Error(err))
		}
	}
	if len(failures) > 0 {
		report, err := p.store.MarkBatchFailed(ctx, failures)
		if err != nil {
			p.logger.Error("bulk failure report errored",
				zap.String("batch_id", batch.BatchID), zap.Error(err))
		} else if !report.Success {
			p.logger.Warn("some failure transitions were not recorded",
				zap.String("batch_id", batch.BatchID),
				zap.Strings("ids", report.FailedIDs))
		}
	}

	p.logger.Info("batch processed",
		zap.String("batch_id", batch.BatchID),
		zap.String("channel", string(ch)),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Duration("total_time", result.TotalProcessingTime),
	)
	return result
}

// deliver sends one item over its channel and returns the outcome.
// A missing sender, a malformed payload, a sender error, and a sender
// panic are all reported the same way: as a failure with a descriptive
// message, counted against the item's retry budget.
func (p *Processor) deliver(ctx context.Context, item *domain.QueueItem) ItemResult {
	start := time.Now()
	err := p.send(ctx, item)
	res := ItemResult{
		ID:       item.ID,
		Success:  err == nil,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
		p.logger.Warn("delivery failed",
			zap.String("id", item.ID),
			zap.String("channel", string(item.Channel)),
			zap.Int("retry_count", item.RetryCount),
			zap.Error(err),
		)
	}
	return res
}

func (p *Processor) send(ctx context.Context, item *domain.QueueItem) (err error) {
	sender, ok := p.adapters.Sender(item.Channel)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrChannelNotImplemented, item.Channel)
	}

	destination, ok := item.Destination()
	if !ok {
		return domain.ErrMissingDestination
	}
	text, ok := item.Text()
	if !ok {
		return domain.ErrMissingText
	}

	if err := p.limiter.Wait(ctx, item.Channel); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// A panicking sender must not take down the batch; it is treated
	// identically to a returned error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return sender.Send(ctx, destination, text, item.FormatHint())
}
