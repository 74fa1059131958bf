package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/tokoberas/tokoberas/internal/catalog"
	"github.com/tokoberas/tokoberas/internal/finance"
	"github.com/tokoberas/tokoberas/internal/sales"
	"github.com/tokoberas/tokoberas/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, rep Report) (int64, error)
	Get(ctx context.Context, id int64) (Report, error)
	List(ctx context.Context, filter ListFilter) ([]Report, int, error)
	Review(ctx context.Context, id int64, to Status, reviewerID int64, note string) error
	SavePDF(ctx context.Context, id int64, pdf []byte) error
	MarkFailed(ctx context.Context, id int64, cause string) error
	GetPDF(ctx context.Context, id int64) ([]byte, error)
}

// SalesSource lists sales for report data.
type SalesSource interface {
	List(ctx context.Context, filter sales.ListFilter) ([]sales.Sale, int, error)
}

// StockSource lists products for the stock report.
type StockSource interface {
	List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, int, error)
}

// FinanceSource provides the cash ledger for the finance report.
type FinanceSource interface {
	List(ctx context.Context, filter finance.ListFilter) ([]finance.Transaction, int, error)
	Summarize(ctx context.Context, from, to time.Time) (finance.Summary, error)
}

// Renderer converts HTML to PDF.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Enqueuer submits render jobs to the queue.
type Enqueuer interface {
	EnqueueReportRender(ctx context.Context, reportID int64) (*asynq.TaskInfo, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the report request and approval flow. Rendering happens in
// the background worker after approval.
type Service struct {
	repo     RepositoryPort
	sales    SalesSource
	stock    StockSource
	finances FinanceSource
	renderer Renderer
	queue    Enqueuer
	builder  *Builder
	audit    AuditPort
	logger   *slog.Logger
}

// ServiceDeps collects the service dependencies.
type ServiceDeps struct {
	Repo     RepositoryPort
	Sales    SalesSource
	Stock    StockSource
	Finances FinanceSource
	Renderer Renderer
	Queue    Enqueuer
	Audit    AuditPort
	Logger   *slog.Logger
}

// NewService builds Service.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     deps.Repo,
		sales:    deps.Sales,
		stock:    deps.Stock,
		finances: deps.Finances,
		renderer: deps.Renderer,
		queue:    deps.Queue,
		builder:  NewBuilder(),
		audit:    deps.Audit,
		logger:   logger,
	}
}

// Request opens a pending report request.
func (s *Service) Request(ctx context.Context, input RequestInput) (Report, error) {
	if !input.Kind.Valid() {
		return Report{}, ErrUnknownKind
	}
	if !input.PeriodEnd.After(input.PeriodStart) {
		return Report{}, ErrInvalidPeriod
	}
	now := time.Now().UTC()
	rep := Report{
		Kind:        input.Kind,
		PeriodStart: input.PeriodStart,
		PeriodEnd:   input.PeriodEnd,
		Status:      StatusPending,
		RequestedBy: input.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.repo.Insert(ctx, rep)
	if err != nil {
		return Report{}, err
	}
	rep.ID = id
	s.auditReport(ctx, input.ActorID, "report:request", id, map[string]any{"kind": string(rep.Kind)})
	return rep, nil
}

// Get returns one report.
func (s *Service) Get(ctx context.Context, id int64) (Report, error) {
	return s.repo.Get(ctx, id)
}

// List returns reports matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Report, int, error) {
	return s.repo.List(ctx, filter)
}

// Approve accepts a pending request and queues the render job.
func (s *Service) Approve(ctx context.Context, id, reviewerID int64, note string) (Report, error) {
	if err := s.repo.Review(ctx, id, StatusApproved, reviewerID, note); err != nil {
		return Report{}, err
	}
	if s.queue != nil {
		if _, err := s.queue.EnqueueReportRender(ctx, id); err != nil {
			s.logger.Error("enqueue report render", slog.Int64("report_id", id), slog.Any("error", err))
		}
	}
	s.auditReport(ctx, reviewerID, "report:approve", id, nil)
	return s.repo.Get(ctx, id)
}

// Reject declines a pending request.
func (s *Service) Reject(ctx context.Context, id, reviewerID int64, note string) (Report, error) {
	if err := s.repo.Review(ctx, id, StatusRejected, reviewerID, note); err != nil {
		return Report{}, err
	}
	s.auditReport(ctx, reviewerID, "report:reject", id, nil)
	return s.repo.Get(ctx, id)
}

// Download returns the rendered PDF.
func (s *Service) Download(ctx context.Context, id int64) ([]byte, error) {
	return s.repo.GetPDF(ctx, id)
}

// Render builds the report data, converts it to PDF and stores the result.
// Called from the background worker; a failure is recorded on the report and
// returned so the queue can retry.
func (s *Service) Render(ctx context.Context, id int64) error {
	rep, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rep.Status != StatusApproved {
		return fmt.Errorf("%w: status %s", ErrNotApproved, rep.Status)
	}

	html, err := s.buildHTML(ctx, rep)
	if err != nil {
		return s.fail(ctx, id, err)
	}
	pdf, err := s.renderer.RenderHTML(ctx, html)
	if err != nil {
		return s.fail(ctx, id, err)
	}
	if err := s.repo.SavePDF(ctx, id, pdf); err != nil {
		return err
	}
	s.logger.Info("report rendered", slog.Int64("report_id", id), slog.Int("bytes", len(pdf)))
	return nil
}

func (s *Service) buildHTML(ctx context.Context, rep Report) (string, error) {
	switch rep.Kind {
	case KindSalesDaily, KindSalesMonthly:
		completed, _, err := s.sales.List(ctx, sales.ListFilter{
			Status:  sales.StatusCompleted,
			From:    rep.PeriodStart,
			To:      rep.PeriodEnd,
			PerPage: 10000,
		})
		if err != nil {
			return "", err
		}
		title := "Laporan Penjualan Harian"
		if rep.Kind == KindSalesMonthly {
			title = "Laporan Penjualan Bulanan"
		}
		return s.builder.SalesReport(title, rep.PeriodStart, rep.PeriodEnd, completed), nil
	case KindStock:
		products, _, err := s.stock.List(ctx, catalog.ListFilter{PerPage: 10000})
		if err != nil {
			return "", err
		}
		return s.builder.StockReport(rep.PeriodStart, rep.PeriodEnd, products), nil
	case KindFinance:
		var (
			summary finance.Summary
			txns    []finance.Transaction
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			summary, err = s.finances.Summarize(gctx, rep.PeriodStart, rep.PeriodEnd)
			return err
		})
		g.Go(func() error {
			var err error
			txns, _, err = s.finances.List(gctx, finance.ListFilter{
				From:    rep.PeriodStart,
				To:      rep.PeriodEnd,
				PerPage: 10000,
			})
			return err
		})
		if err := g.Wait(); err != nil {
			return "", err
		}
		return s.builder.FinanceReport(summary, txns), nil
	}
	return "", ErrUnknownKind
}

func (s *Service) fail(ctx context.Context, id int64, cause error) error {
	if err := s.repo.MarkFailed(ctx, id, cause.Error()); err != nil {
		s.logger.Error("mark report failed", slog.Int64("report_id", id), slog.Any("error", err))
	}
	return cause
}

func (s *Service) auditReport(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "report",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit report", slog.Int64("report_id", id), slog.Any("error", err))
	}
}
