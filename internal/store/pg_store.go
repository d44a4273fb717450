package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

const itemColumns = `id, user_id, message_id, notification_type, channel, payload,
	status, priority, dynamic_priority, retry_count, max_retries, next_retry_at,
	batch_id, batch_size, batch_position, processing_time_ms, last_error,
	created_at, updated_at, last_processed_at`

type pgStore struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewPgStore returns a Store backed by PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *pgStore) Enqueue(ctx context.Context, req domain.EnqueueRequest) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batchID, size, position := uuid.New().String(), 1, 0
	if req.BatchID != nil {
		// Joining an existing batch: the new member's size and position
		// come from the current count. Sizes recorded on earlier members
		// are fixed at their creation and stay untouched.
		var existing int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM queue_items WHERE batch_id = $1`, *req.BatchID,
		).Scan(&existing)
		if err != nil {
			return "", fmt.Errorf("count batch members: %w", err)
		}
		batchID, size, position = *req.BatchID, existing+1, existing
	}

	item := buildItem(req, batchID, size, position)
	if err := insertItem(ctx, tx, item); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit enqueue: %w", err)
	}
	return item.ID, nil
}

func (s *pgStore) EnqueueBatch(ctx context.Context, reqs []domain.EnqueueRequest) (*domain.BatchReceipt, error) {
	batchID := uuid.New().String()
	if len(reqs) == 0 {
		return &domain.BatchReceipt{BatchID: batchID, Count: 0}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin enqueue batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i, req := range reqs {
		item := buildItem(req, batchID, len(reqs), i)
		if err := insertItem(ctx, tx, item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit enqueue batch: %w", err)
	}
	return &domain.BatchReceipt{BatchID: batchID, Count: len(reqs)}, nil
}

// claimQuery selects eligible items with SKIP LOCKED and flips them to
// processing in the same statement, so two concurrent workers can never
// claim the same rows. The channel filter is optional ($2 empty = any).
var claimQuery = `
	WITH eligible AS (
		SELECT id FROM queue_items
		WHERE (status = 'pending' OR (status = 'retry' AND next_retry_at <= now()))
		  AND ($2 = '' OR channel = $2)
		ORDER BY dynamic_priority DESC, created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE queue_items q
	SET status = 'processing', last_processed_at = now(), updated_at = now()
	FROM eligible e
	WHERE q.id = e.id
	RETURNING ` + qualifyColumns("q")

func (s *pgStore) Dequeue(ctx context.Context, limit int) ([]*domain.QueueItem, error) {
	return s.claim(ctx, limit, "")
}

func (s *pgStore) DequeueBatch(ctx context.Context, batchSize int, channel domain.Channel) (*domain.ClaimedBatch, error) {
	items, err := s.claim(ctx, batchSize, channel)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &domain.ClaimedBatch{BatchID: uuid.New().String(), Items: items}, nil
}

func (s *pgStore) claim(ctx context.Context, limit int, channel domain.Channel) ([]*domain.QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, claimQuery, limit, string(channel))
	if err != nil {
		return nil, fmt.Errorf("claim items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	// UPDATE ... FROM does not preserve the subquery ordering.
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].DynamicPriority != items[b].DynamicPriority {
			return items[a].DynamicPriority > items[b].DynamicPriority
		}
		return items[a].CreatedAt.Before(items[b].CreatedAt)
	})
	return items, nil
}

func (s *pgStore) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return item, err
}

func (s *pgStore) MarkCompleted(ctx context.Context, id string, processingTime time.Duration) error {
	// The status guard makes completion idempotent and keeps terminal
	// items from being revived.
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'completed', processing_time_ms = $1, next_retry_at = NULL, updated_at = now()
		WHERE id = $2 AND status NOT IN ('completed', 'failed')`,
		processingTime.Milliseconds(), id)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

func (s *pgStore) MarkBatchCompleted(ctx context.Context, ids []string, processingTimes map[string]time.Duration) error {
	var firstErr error
	for _, id := range ids {
		if err := s.MarkCompleted(ctx, id, processingTimes[id]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *pgStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mark failed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var status domain.Status
	var retryCount, maxRetries int
	err = tx.QueryRow(ctx, `
		SELECT status, retry_count, max_retries
		FROM queue_items WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status, &retryCount, &maxRetries)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read item for failure: %w", err)
	}
	if status.IsTerminal() {
		return nil
	}

	retryCount++
	if retryCount <= maxRetries {
		nextRetry := time.Now().UTC().Add(domain.NextRetryDelay(retryCount))
		_, err = tx.Exec(ctx, `
			UPDATE queue_items
			SET status = 'retry', retry_count = $1, next_retry_at = $2,
			    last_error = $3, updated_at = now()
			WHERE id = $4`,
			retryCount, nextRetry, errMsg, id)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE queue_items
			SET status = 'failed', retry_count = $1, next_retry_at = NULL,
			    last_error = $2, updated_at = now()
			WHERE id = $3`,
			maxRetries, errMsg, id)
	}
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *pgStore) MarkBatchFailed(ctx context.Context, failures []domain.ItemFailure) (*domain.BatchFailureReport, error) {
	report := &domain.BatchFailureReport{Success: true}
	for _, f := range failures {
		if err := s.MarkFailed(ctx, f.ID, f.Reason); err != nil {
			report.Success = false
			report.FailedIDs = append(report.FailedIDs, f.ID)
		}
	}
	return report, nil
}

func (s *pgStore) Stats(ctx context.Context) (*domain.QueueStats, error) {
	var stats domain.QueueStats
	var avgMS, maxMS float64
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'retry'),
			COUNT(*),
			COALESCE(AVG(processing_time_ms), 0),
			COALESCE(MAX(processing_time_ms), 0),
			COALESCE(AVG(retry_count) FILTER (WHERE retry_count > 0), 0)
		FROM queue_items`,
	).Scan(
		&stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed,
		&stats.Retry, &stats.Total, &avgMS, &maxMS, &stats.AvgRetryCount,
	)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	stats.AvgProcessingTime = time.Duration(avgMS) * time.Millisecond
	stats.MaxProcessingTime = time.Duration(maxMS) * time.Millisecond
	return &stats, nil
}

func (s *pgStore) BatchStats(ctx context.Context, batchID string) (*domain.BatchStats, error) {
	query, args, err := s.sb.
		Select(
			"COUNT(*)",
			"COUNT(*) FILTER (WHERE status = 'completed')",
			"COUNT(*) FILTER (WHERE status = 'failed')",
			"COUNT(*) FILTER (WHERE status = 'pending')",
			"COUNT(*) FILTER (WHERE status = 'processing')",
			"COUNT(*) FILTER (WHERE status = 'retry')",
			"COALESCE(AVG(processing_time_ms), 0)",
		).
		From("queue_items").
		Where(sq.Eq{"batch_id": batchID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build batch stats query: %w", err)
	}

	stats := domain.BatchStats{BatchID: batchID}
	var avgMS float64
	err = s.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total, &stats.Completed, &stats.Failed,
		&stats.Pending, &stats.Processing, &stats.Retry, &avgMS,
	)
	if err != nil {
		return nil, fmt.Errorf("batch stats: %w", err)
	}
	if stats.Total == 0 {
		return nil, domain.ErrNotFound
	}
	stats.AvgProcessingTime = time.Duration(avgMS) * time.Millisecond
	return &stats, nil
}

func (s *pgStore) CleanupOldItems(ctx context.Context, retention time.Duration) (int64, error) {
	query, args, err := s.sb.
		Delete("queue_items").
		Where(sq.Eq{"status": []string{string(domain.StatusCompleted), string(domain.StatusFailed)}}).
		Where(sq.Lt{"updated_at": time.Now().UTC().Add(-retention)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cleanup query: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup old items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) EscalatePriorities(ctx context.Context, minAge time.Duration, step int) (int64, error) {
	query, args, err := s.sb.
		Update("queue_items").
		Set("dynamic_priority", sq.Expr("dynamic_priority + ?", step)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"status": []string{string(domain.StatusPending), string(domain.StatusRetry)}}).
		Where(sq.Lt{"created_at": time.Now().UTC().Add(-minAge)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build escalate query: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("escalate priorities: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) ReapStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'retry', next_retry_at = now(), updated_at = now()
		WHERE status = 'processing' AND last_processed_at < $1`,
		time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("reap stuck items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---- helpers ----

func buildItem(req domain.EnqueueRequest, batchID string, size, position int) *domain.QueueItem {
	now := time.Now().UTC()
	maxRetries := domain.DefaultMaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}
	payload := req.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	return &domain.QueueItem{
		ID:               uuid.New().String(),
		UserID:           req.UserID,
		MessageID:        req.MessageID,
		NotificationType: req.NotificationType,
		Channel:          req.Channel,
		Payload:          payload,
		Status:           domain.StatusPending,
		Priority:         req.Priority,
		DynamicPriority:  req.Priority,
		MaxRetries:       maxRetries,
		BatchID:          &batchID,
		BatchSize:        size,
		BatchPosition:    position,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func insertItem(ctx context.Context, tx pgx.Tx, item *domain.QueueItem) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO queue_items
			(id, user_id, message_id, notification_type, channel, payload,
			 status, priority, dynamic_priority, retry_count, max_retries,
			 batch_id, batch_size, batch_position, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		item.ID, item.UserID, item.MessageID, item.NotificationType,
		item.Channel, item.Payload, item.Status, item.Priority,
		item.DynamicPriority, item.RetryCount, item.MaxRetries,
		item.BatchID, item.BatchSize, item.BatchPosition,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

// scanItem reads a single queue item row from any pgx row type.
func scanItem(row pgx.Row) (*domain.QueueItem, error) {
	var item domain.QueueItem
	var processingMS *int64
	err := row.Scan(
		&item.ID, &item.UserID, &item.MessageID, &item.NotificationType,
		&item.Channel, &item.Payload, &item.Status, &item.Priority,
		&item.DynamicPriority, &item.RetryCount, &item.MaxRetries,
		&item.NextRetryAt, &item.BatchID, &item.BatchSize, &item.BatchPosition,
		&processingMS, &item.LastError,
		&item.CreatedAt, &item.UpdatedAt, &item.LastProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if processingMS != nil {
		d := time.Duration(*processingMS) * time.Millisecond
		item.ProcessingTime = &d
	}
	return &item, nil
}

func scanItems(rows pgx.Rows) ([]*domain.QueueItem, error) {
	var items []*domain.QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// qualifyColumns prefixes every item column with a table alias for use
// in UPDATE ... RETURNING statements.
func qualifyColumns(alias string) string {
	return alias + `.id, ` + alias + `.user_id, ` + alias + `.message_id, ` +
		alias + `.notification_type, ` + alias + `.channel, ` + alias + `.payload, ` +
		alias + `.status, ` + alias + `.priority, ` + alias + `.dynamic_priority, ` +
		alias + `.retry_count, ` + alias + `.max_retries, ` + alias + `.next_retry_at, ` +
		alias + `.batch_id, ` + alias + `.batch_size, ` + alias + `.batch_position, ` +
		alias + `.processing_time_ms, ` + alias + `.last_error, ` +
		alias + `.created_at, ` + alias + `.updated_at, ` + alias + `.last_processed_at`
}
