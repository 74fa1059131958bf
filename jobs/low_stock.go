package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/tokoberas/tokoberas/internal/catalog"
	jobmetrics "github.com/tokoberas/tokoberas/internal/jobs"
)

// LowStockSource lists products at or under their minimum stock.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]catalog.Product, error)
}

// Mailer sends notification emails.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// NewLowStockScanHandler builds the handler for the nightly low stock sweep.
// When notifyTo is empty the findings are only logged.
func NewLowStockScanHandler(products LowStockSource, mailer Mailer, notifyTo string, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("low_stock_scan")
		var payload LowStockScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		low, err := products.LowStock(ctx)
		if err != nil {
			return tracker.End(err)
		}
		metrics.SetLowStock(len(low))
		if len(low) == 0 {
			logger.Info("low stock scan clean")
			return tracker.End(nil)
		}

		names := make([]string, 0, len(low))
		for _, p := range low {
			names = append(names, fmt.Sprintf("%s (%s): %g %s (min %g)", p.Name, p.Code, p.Stock, p.Unit, p.MinStock))
		}
		logger.Warn("low stock scan", slog.Int("count", len(low)), slog.String("products", strings.Join(names, "; ")))

		if mailer == nil || notifyTo == "" {
			return tracker.End(nil)
		}
		_, err = mailer.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      notifyTo,
			Subject: fmt.Sprintf("Stok menipis: %d produk", len(low)),
			Body:    strings.Join(names, "\n"),
		})
		return tracker.End(err)
	}
}
