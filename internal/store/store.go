package store

import (
	"context"
	"time"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

// Store owns all queue item state. Every status transition goes through
// this interface; the processor never writes item state directly.
//
// The Postgres implementation is in pg_store.go. Tests use the in-memory
// implementation (memory_store.go), which mirrors the same semantics.
type Store interface {
	// Enqueue inserts one item with status pending and retry count zero.
	// A supplied BatchID joins an existing batch: batch size and position
	// are computed from the current member count. Otherwise a fresh
	// single-item batch id is generated.
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (string, error)

	// EnqueueBatch inserts the items under one fresh batch id with
	// sequential positions. An empty slice yields a zero-count receipt,
	// not an error.
	EnqueueBatch(ctx context.Context, reqs []domain.EnqueueRequest) (*domain.BatchReceipt, error)

	// Dequeue claims up to limit eligible items: status pending, or retry
	// with next_retry_at due. Ordering is dynamic priority descending,
	// then oldest first. Claimed items are atomically flipped to
	// processing; no concurrent call may return the same items.
	Dequeue(ctx context.Context, limit int) ([]*domain.QueueItem, error)

	// DequeueBatch is Dequeue with an optional channel filter, wrapping
	// the claimed items under a synthetic processing batch id. Returns
	// (nil, nil) when no items are eligible.
	DequeueBatch(ctx context.Context, batchSize int, channel domain.Channel) (*domain.ClaimedBatch, error)

	GetByID(ctx context.Context, id string) (*domain.QueueItem, error)

	// MarkCompleted transitions an item to completed and records its
	// processing time. Items already in a terminal state are left alone.
	MarkCompleted(ctx context.Context, id string, processingTime time.Duration) error

	// MarkBatchCompleted applies MarkCompleted per item; one bad id does
	// not abort the rest. processingTimes may be nil.
	MarkBatchCompleted(ctx context.Context, ids []string, processingTimes map[string]time.Duration) error

	// MarkFailed increments the retry count and either schedules a retry
	// (retryCount <= maxRetries, with backoff) or transitions to the
	// terminal failed status. Exhausting retries is a valid outcome of
	// this call, not an error.
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// MarkBatchFailed applies MarkFailed per item. The report's FailedIDs
	// lists the ids whose store call errored.
	MarkBatchFailed(ctx context.Context, failures []domain.ItemFailure) (*domain.BatchFailureReport, error)

	// Stats returns counts per status plus processing time and retry
	// count rollups. Read-only; safe to call concurrently.
	Stats(ctx context.Context) (*domain.QueueStats, error)

	// BatchStats returns the rollup for one enqueue-time batch, or
	// domain.ErrNotFound when the batch has no members.
	BatchStats(ctx context.Context, batchID string) (*domain.BatchStats, error)

	// CleanupOldItems deletes completed and failed items not updated
	// within the retention window. Returns the number deleted.
	CleanupOldItems(ctx context.Context, retention time.Duration) (int64, error)

	// EscalatePriorities bumps the dynamic priority of claimable items
	// that have waited longer than minAge. Returns the number escalated.
	EscalatePriorities(ctx context.Context, minAge time.Duration, step int) (int64, error)

	// ReapStuck returns items stuck in processing longer than olderThan
	// back to retry, immediately eligible. The retry count is not
	// incremented: the stalled attempt never reported an outcome.
	ReapStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}
