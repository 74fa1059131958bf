package report

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tokoberas/tokoberas/internal/jobs"
	"github.com/tokoberas/tokoberas/jobs"
)

// NewRenderTaskHandler builds the worker handler for report render tasks.
func NewRenderTaskHandler(service *Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("report_render")
		var payload jobs.ReportRenderPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if err := service.Render(ctx, payload.ReportID); err != nil {
			logger.Error("render report", slog.Int64("report_id", payload.ReportID), slog.Any("error", err))
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
