package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/domain"
	"github.com/notifyhub/delivery-queue/internal/store"
)

// QueueService sits between the producer surfaces (HTTP, Kafka ingest)
// and the store. It owns request validation; storage failures are logged
// here and surfaced to the caller, which treats a missing id as
// non-fatal — the queue stays usable through transient store outages.
type QueueService struct {
	store  store.Store
	logger *zap.Logger
}

func NewQueueService(st store.Store, logger *zap.Logger) *QueueService {
	return &QueueService{store: st, logger: logger}
}

// Enqueue validates and persists a single item, returning its id.
func (s *QueueService) Enqueue(ctx context.Context, req domain.EnqueueRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	id, err := s.store.Enqueue(ctx, req)
	if err != nil {
		s.logger.Warn("enqueue failed",
			zap.String("user_id", req.UserID),
			zap.String("channel", string(req.Channel)),
			zap.Error(err),
		)
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

// EnqueueBatch validates and persists the items under one batch id.
// An empty slice returns a zero-count receipt without touching the store.
func (s *QueueService) EnqueueBatch(ctx context.Context, reqs []domain.EnqueueRequest) (*domain.BatchReceipt, error) {
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	receipt, err := s.store.EnqueueBatch(ctx, reqs)
	if err != nil {
		s.logger.Warn("enqueue batch failed",
			zap.Int("count", len(reqs)), zap.Error(err))
		return nil, fmt.Errorf("enqueue batch: %w", err)
	}
	return receipt, nil
}

func (s *QueueService) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	return s.store.GetByID(ctx, id)
}

func (s *QueueService) Stats(ctx context.Context) (*domain.QueueStats, error) {
	return s.store.Stats(ctx)
}

func (s *QueueService) BatchStats(ctx context.Context, batchID string) (*domain.BatchStats, error) {
	return s.store.BatchStats(ctx, batchID)
}
