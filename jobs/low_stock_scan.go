package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/layerworks/layerworks/internal/inventory"
	jobmetrics "github.com/layerworks/layerworks/internal/jobs"
)

// LowStockLister returns products at or below their threshold.
type LowStockLister interface {
	LowStock(ctx context.Context, limit int) ([]inventory.Product, error)
}

// LowStockScanJob logs products that need restocking and exports the count.
type LowStockScanJob struct {
	Inventory LowStockLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

func NewLowStockScanJob(inv LowStockLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockScanJob{Inventory: inv, Logger: logger, Metrics: metrics}
}

func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload ScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = 500
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	start := time.Now()
	products, err := j.Inventory.LowStock(ctx, payload.Limit)
	if err != nil {
		j.Logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	for _, p := range products {
		j.Logger.Warn("product low on stock",
			slog.Int64("product_id", p.ID),
			slog.String("sku", p.SKU),
			slog.Int("stock", p.Stock),
			slog.Int("threshold", p.LowStockThreshold),
		)
	}
	j.Metrics.SetLowStock(len(products))
	j.Logger.Info("completed low stock scan", slog.Int("products", len(products)), slog.Duration("duration", time.Since(start)))
	return nil
}
