package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

// MemoryStore is an in-memory Store used in unit tests and single-process
// setups. It mirrors the Postgres semantics, including atomic claims
// (guaranteed by the mutex) and terminal state protection.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*domain.QueueItem
	seq   map[string]int // insertion order, tie-break after created_at
	next  int

	// Optional error overrides, set in tests to simulate storage outages.
	EnqueueErr      error
	DequeueErr      error
	MarkFailedErr   error
	MarkCompleteErr error
	StatsErr        error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*domain.QueueItem),
		seq:   make(map[string]int),
	}
}

func (s *MemoryStore) Enqueue(_ context.Context, req domain.EnqueueRequest) (string, error) {
	if s.EnqueueErr != nil {
		return "", s.EnqueueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID, size, position := uuid.New().String(), 1, 0
	if req.BatchID != nil {
		existing := 0
		for _, item := range s.items {
			if item.BatchID != nil && *item.BatchID == *req.BatchID {
				existing++
			}
		}
		batchID, size, position = *req.BatchID, existing+1, existing
	}

	item := buildItem(req, batchID, size, position)
	s.insert(item)
	return item.ID, nil
}

func (s *MemoryStore) EnqueueBatch(_ context.Context, reqs []domain.EnqueueRequest) (*domain.BatchReceipt, error) {
	if s.EnqueueErr != nil {
		return nil, s.EnqueueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID := uuid.New().String()
	for i, req := range reqs {
		s.insert(buildItem(req, batchID, len(reqs), i))
	}
	return &domain.BatchReceipt{BatchID: batchID, Count: len(reqs)}, nil
}

func (s *MemoryStore) Dequeue(_ context.Context, limit int) ([]*domain.QueueItem, error) {
	if s.DequeueErr != nil {
		return nil, s.DequeueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claim(limit, ""), nil
}

func (s *MemoryStore) DequeueBatch(_ context.Context, batchSize int, channel domain.Channel) (*domain.ClaimedBatch, error) {
	if s.DequeueErr != nil {
		return nil, s.DequeueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.claim(batchSize, channel)
	if len(items) == 0 {
		return nil, nil
	}
	return &domain.ClaimedBatch{BatchID: uuid.New().String(), Items: items}, nil
}

// claim selects eligible items, flips them to processing, and returns
// copies. Callers must hold the mutex; the flip is atomic with the
// selection, so concurrent claimers never receive the same item.
func (s *MemoryStore) claim(limit int, channel domain.Channel) []*domain.QueueItem {
	if limit <= 0 {
		return nil
	}
	now := time.Now().UTC()

	var eligible []*domain.QueueItem
	for _, item := range s.items {
		if channel != "" && item.Channel != channel {
			continue
		}
		switch item.Status {
		case domain.StatusPending:
			eligible = append(eligible, item)
		case domain.StatusRetry:
			if item.NextRetryAt != nil && !item.NextRetryAt.After(now) {
				eligible = append(eligible, item)
			}
		}
	}

	sort.Slice(eligible, func(a, b int) bool {
		if eligible[a].DynamicPriority != eligible[b].DynamicPriority {
			return eligible[a].DynamicPriority > eligible[b].DynamicPriority
		}
		if !eligible[a].CreatedAt.Equal(eligible[b].CreatedAt) {
			return eligible[a].CreatedAt.Before(eligible[b].CreatedAt)
		}
		return s.seq[eligible[a].ID] < s.seq[eligible[b].ID]
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	claimed := make([]*domain.QueueItem, len(eligible))
	for i, item := range eligible {
		item.Status = domain.StatusProcessing
		item.LastProcessedAt = &now
		item.UpdatedAt = now
		clone := *item
		claimed[i] = &clone
	}
	return claimed
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (s *MemoryStore) MarkCompleted(_ context.Context, id string, processingTime time.Duration) error {
	if s.MarkCompleteErr != nil {
		return s.MarkCompleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.Status.IsTerminal() {
		return nil
	}
	item.Status = domain.StatusCompleted
	item.ProcessingTime = &processingTime
	item.NextRetryAt = nil
	item.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) MarkBatchCompleted(ctx context.Context, ids []string, processingTimes map[string]time.Duration) error {
	var firstErr error
	for _, id := range ids {
		if err := s.MarkCompleted(ctx, id, processingTimes[id]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, errMsg string) error {
	if s.MarkFailedErr != nil {
		return s.MarkFailedErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if item.Status.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	item.LastError = &errMsg
	item.UpdatedAt = now

	if item.RetryCount+1 <= item.MaxRetries {
		item.RetryCount++
		nextRetry := now.Add(domain.NextRetryDelay(item.RetryCount))
		item.Status = domain.StatusRetry
		item.NextRetryAt = &nextRetry
	} else {
		item.Status = domain.StatusFailed
		item.NextRetryAt = nil
	}
	return nil
}

func (s *MemoryStore) MarkBatchFailed(ctx context.Context, failures []domain.ItemFailure) (*domain.BatchFailureReport, error) {
	report := &domain.BatchFailureReport{Success: true}
	for _, f := range failures {
		if err := s.MarkFailed(ctx, f.ID, f.Reason); err != nil {
			report.Success = false
			report.FailedIDs = append(report.FailedIDs, f.ID)
		}
	}
	return report, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*domain.QueueStats, error) {
	if s.StatsErr != nil {
		return nil, s.StatsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.QueueStats
	var totalProcessing time.Duration
	var processed, retried, totalRetries int

	for _, item := range s.items {
		stats.Total++
		switch item.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		case domain.StatusRetry:
			stats.Retry++
		}
		if item.ProcessingTime != nil {
			processed++
			totalProcessing += *item.ProcessingTime
			if *item.ProcessingTime > stats.MaxProcessingTime {
				stats.MaxProcessingTime = *item.ProcessingTime
			}
		}
		if item.RetryCount > 0 {
			retried++
			totalRetries += item.RetryCount
		}
	}
	if processed > 0 {
		stats.AvgProcessingTime = totalProcessing / time.Duration(processed)
	}
	if retried > 0 {
		stats.AvgRetryCount = float64(totalRetries) / float64(retried)
	}
	return &stats, nil
}

func (s *MemoryStore) BatchStats(_ context.Context, batchID string) (*domain.BatchStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.BatchStats{BatchID: batchID}
	var totalProcessing time.Duration
	var processed int

	for _, item := range s.items {
		if item.BatchID == nil || *item.BatchID != batchID {
			continue
		}
		stats.Total++
		switch item.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		case domain.StatusRetry:
			stats.Retry++
		}
		if item.ProcessingTime != nil {
			processed++
			totalProcessing += *item.ProcessingTime
		}
	}
	if stats.Total == 0 {
		return nil, domain.ErrNotFound
	}
	if processed > 0 {
		stats.AvgProcessingTime = totalProcessing / time.Duration(processed)
	}
	return &stats, nil
}

func (s *MemoryStore) CleanupOldItems(_ context.Context, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	var deleted int64
	for id, item := range s.items {
		if item.Status.IsTerminal() && item.UpdatedAt.Before(cutoff) {
			delete(s.items, id)
			delete(s.seq, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) EscalatePriorities(_ context.Context, minAge time.Duration, step int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-minAge)
	var escalated int64
	for _, item := range s.items {
		if (item.Status == domain.StatusPending || item.Status == domain.StatusRetry) &&
			item.CreatedAt.Before(cutoff) {
			item.DynamicPriority += step
			item.UpdatedAt = time.Now().UTC()
			escalated++
		}
	}
	return escalated, nil
}

func (s *MemoryStore) ReapStuck(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)
	var reaped int64
	for _, item := range s.items {
		if item.Status == domain.StatusProcessing &&
			item.LastProcessedAt != nil && item.LastProcessedAt.Before(cutoff) {
			retryAt := now
			item.Status = domain.StatusRetry
			item.NextRetryAt = &retryAt
			item.UpdatedAt = now
			reaped++
		}
	}
	return reaped, nil
}

// insert stores a copy of the item. Callers must hold the mutex.
func (s *MemoryStore) insert(item *domain.QueueItem) {
	clone := *item
	s.items[item.ID] = &clone
	s.seq[item.ID] = s.next
	s.next++
}

var _ Store = (*MemoryStore)(nil)
