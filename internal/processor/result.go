package processor

import (
	"time"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

// ProcessResult summarises one ProcessQueue cycle.
type ProcessResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ItemResult records the delivery outcome of a single item.
type ItemResult struct {
	ID       string        `json:"id"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// BatchResult summarises one channel's batch in ProcessQueueWithBatches.
type BatchResult struct {
	BatchID             string         `json:"batch_id"`
	Channel             domain.Channel `json:"channel"`
	Items               []ItemResult   `json:"items"`
	Success             int            `json:"success"`
	Failed              int            `json:"failed"`
	TotalProcessingTime time.Duration  `json:"total_processing_time"`
	AvgProcessingTime   time.Duration  `json:"avg_processing_time"`
}
