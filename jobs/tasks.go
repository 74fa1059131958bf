package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeReportRender is the task type for rendering an approved report
	// to PDF.
	TaskTypeReportRender = "report:render"
	// TaskTypeLowStockScan is the task type for the nightly low stock sweep.
	TaskTypeLowStockScan = "inventory:low_stock_scan"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder until SMTP is configured for the shop.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// ReportRenderPayload identifies the report to render.
type ReportRenderPayload struct {
	ReportID int64 `json:"report_id"`
}

// NewReportRenderTask constructs an Asynq task for report rendering.
func NewReportRenderTask(reportID int64) (*asynq.Task, error) {
	data, err := json.Marshal(ReportRenderPayload{ReportID: reportID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReportRender, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the nightly low stock
// sweep.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockScan, data, asynq.Queue(QueueDefault)), nil
}
