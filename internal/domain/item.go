package domain

import "time"

// Channel is the delivery medium for a queued notification.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelInApp    Channel = "in_app"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelTelegram, ChannelWhatsApp, ChannelEmail, ChannelInApp:
		return true
	}
	return false
}

// Channels returns every valid channel in a fixed order.
// Batch processing iterates channels in this order.
func Channels() []Channel {
	return []Channel{ChannelTelegram, ChannelWhatsApp, ChannelEmail, ChannelInApp}
}

// Status tracks the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetry      Status = "retry"
)

// IsTerminal reports whether no further transition may leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// QueueItem is one unit of notification work.
//
// The store exclusively owns status transitions; the processor requests
// them through the store API and never mutates items directly.
type QueueItem struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	MessageID        *string           `json:"message_id,omitempty"`
	NotificationType string            `json:"notification_type"`
	Channel          Channel           `json:"channel"`
	Payload          map[string]string `json:"payload"`
	Status           Status            `json:"status"`
	Priority         int               `json:"priority"`
	DynamicPriority  int               `json:"dynamic_priority"`
	RetryCount       int               `json:"retry_count"`
	MaxRetries       int               `json:"max_retries"`
	NextRetryAt      *time.Time        `json:"next_retry_at,omitempty"`
	BatchID          *string           `json:"batch_id,omitempty"`
	BatchSize        int               `json:"batch_size"`
	BatchPosition    int               `json:"batch_position"`
	ProcessingTime   *time.Duration    `json:"processing_time,omitempty"`
	LastError        *string           `json:"last_error,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	LastProcessedAt  *time.Time        `json:"last_processed_at,omitempty"`
}

// EnqueueRequest is the inbound payload for a single queue item.
type EnqueueRequest struct {
	UserID           string            `json:"user_id"`
	MessageID        *string           `json:"message_id,omitempty"`
	NotificationType string            `json:"notification_type"`
	Channel          Channel           `json:"channel"`
	Payload          map[string]string `json:"payload"`
	Priority         int               `json:"priority"`
	MaxRetries       *int              `json:"max_retries,omitempty"`
	BatchID          *string           `json:"batch_id,omitempty"`
}

// DefaultMaxRetries applies when a producer does not supply max_retries.
const DefaultMaxRetries = 3

func (r *EnqueueRequest) Validate() error {
	if !r.Channel.IsValid() {
		return ErrInvalidChannel
	}
	if r.UserID == "" {
		return ErrInvalidUserID
	}
	if r.NotificationType == "" {
		return ErrInvalidType
	}
	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	return nil
}

// EnqueueBatchRequest wraps a slice of enqueue requests.
type EnqueueBatchRequest struct {
	Items []EnqueueRequest `json:"items"`
}

// BatchReceipt is returned by EnqueueBatch.
type BatchReceipt struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

// ClaimedBatch wraps items claimed together by DequeueBatch. Its ID is a
// processing batch id, distinct from any enqueue-time batch id.
type ClaimedBatch struct {
	BatchID string       `json:"batch_id"`
	Items   []*QueueItem `json:"items"`
}

// ItemFailure pairs an item id with the delivery error to record.
type ItemFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BatchFailureReport lists the ids whose underlying store call errored
// (not the notifications that ultimately failed delivery).
type BatchFailureReport struct {
	Success   bool     `json:"success"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// QueueStats is the queue-wide rollup.
type QueueStats struct {
	Pending           int           `json:"pending"`
	Processing        int           `json:"processing"`
	Completed         int           `json:"completed"`
	Failed            int           `json:"failed"`
	Retry             int           `json:"retry"`
	Total             int           `json:"total"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	MaxProcessingTime time.Duration `json:"max_processing_time"`
	AvgRetryCount     float64       `json:"avg_retry_count"`
}

// BatchStats is the rollup scoped to one enqueue-time batch.
type BatchStats struct {
	BatchID           string        `json:"batch_id"`
	Total             int           `json:"total"`
	Completed         int           `json:"completed"`
	Failed            int           `json:"failed"`
	Pending           int           `json:"pending"`
	Processing        int           `json:"processing"`
	Retry             int           `json:"retry"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}
