package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/tokoberas/tokoberas/internal/catalog"
)

type stubLowStock struct {
	products []catalog.Product
	err      error
}

func (s stubLowStock) LowStock(context.Context) ([]catalog.Product, error) {
	return s.products, s.err
}

type stubMailer struct {
	sent []SendEmailPayload
	err  error
}

func (s *stubMailer) EnqueueSendEmail(_ context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lowStockTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewLowStockScanTask(time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return task
}

func TestLowStockScanMailsFindings(t *testing.T) {
	source := stubLowStock{products: []catalog.Product{
		{Code: "BRS-001", Name: "Beras Premium 5kg", Unit: "karung", Stock: 3, MinStock: 10},
		{Code: "MNY-001", Name: "Minyak Goreng 2L", Unit: "pcs", Stock: 5, MinStock: 12},
	}}
	mailer := &stubMailer{}
	handler := NewLowStockScanHandler(source, mailer, "pemilik@tokoberas.local", nil, discardLogger())

	require.NoError(t, handler(context.Background(), lowStockTask(t)))
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "pemilik@tokoberas.local", mailer.sent[0].To)
	require.Contains(t, mailer.sent[0].Subject, "2 produk")
	require.Contains(t, mailer.sent[0].Body, "BRS-001")
}

func TestLowStockScanSkipsMailWhenClean(t *testing.T) {
	mailer := &stubMailer{}
	handler := NewLowStockScanHandler(stubLowStock{}, mailer, "pemilik@tokoberas.local", nil, discardLogger())

	require.NoError(t, handler(context.Background(), lowStockTask(t)))
	require.Empty(t, mailer.sent)
}

func TestLowStockScanLogsOnlyWithoutRecipient(t *testing.T) {
	source := stubLowStock{products: []catalog.Product{
		{Code: "BRS-002", Name: "Beras Medium 10kg", Unit: "karung", Stock: 1, MinStock: 5},
	}}
	mailer := &stubMailer{}
	handler := NewLowStockScanHandler(source, mailer, "", nil, discardLogger())

	require.NoError(t, handler(context.Background(), lowStockTask(t)))
	require.Empty(t, mailer.sent)
}

func TestLowStockScanPropagatesSourceError(t *testing.T) {
	cause := errors.New("catalog unavailable")
	handler := NewLowStockScanHandler(stubLowStock{err: cause}, nil, "", nil, discardLogger())

	err := handler(context.Background(), lowStockTask(t))
	require.ErrorIs(t, err, cause)
}

func TestLowStockScanRejectsMalformedPayload(t *testing.T) {
	handler := NewLowStockScanHandler(stubLowStock{}, nil, "", nil, discardLogger())

	err := handler(context.Background(), asynq.NewTask(TaskTypeLowStockScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
