package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuoteNotify sends the submission confirmation for a new quote.
	TaskQuoteNotify = "quote:notify"
	// TaskLowStockScan reports products at or below their threshold.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// QuoteNotifyPayload identifies the quote to confirm.
type QuoteNotifyPayload struct {
	QuoteID int64 `json:"quote_id"`
}

// NewQuoteNotifyTask constructs an Asynq task for a quote confirmation.
func NewQuoteNotifyTask(quoteID int64) (*asynq.Task, error) {
	body, err := json.Marshal(QuoteNotifyPayload{QuoteID: quoteID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteNotify, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// ScanPayload carries scheduling metadata for cron tasks.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Limit        int       `json:"limit,omitempty"`
}

// NewLowStockScanTask constructs the periodic low stock scan task.
func NewLowStockScanTask(limit int) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: time.Now().UTC(), Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask() (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
