package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tokoberas/tokoberas/internal/catalog"
	"github.com/tokoberas/tokoberas/internal/finance"
	"github.com/tokoberas/tokoberas/internal/sales"
)

type memRepo struct {
	reports map[int64]Report
	pdfs    map[int64][]byte
	nextID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{reports: map[int64]Report{}, pdfs: map[int64][]byte{}}
}

func (m *memRepo) Insert(ctx context.Context, rep Report) (int64, error) {
	m.nextID++
	rep.ID = m.nextID
	m.reports[rep.ID] = rep
	return rep.ID, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (Report, error) {
	rep, ok := m.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return rep, nil
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]Report, int, error) {
	out := []Report{}
	for _, rep := range m.reports {
		out = append(out, rep)
	}
	return out, len(out), nil
}

func (m *memRepo) Review(ctx context.Context, id int64, to Status, reviewerID int64, note string) error {
	rep, ok := m.reports[id]
	if !ok {
		return ErrNotFound
	}
	if rep.Status != StatusPending {
		return ErrNotPending
	}
	now := time.Now().UTC()
	rep.Status = to
	rep.ReviewedBy = reviewerID
	rep.ReviewNote = note
	rep.ReviewedAt = &now
	m.reports[id] = rep
	return nil
}

func (m *memRepo) SavePDF(ctx context.Context, id int64, pdf []byte) error {
	rep, ok := m.reports[id]
	if !ok || rep.Status != StatusApproved {
		return ErrNotApproved
	}
	now := time.Now().UTC()
	rep.Status = StatusReady
	rep.RenderedAt = &now
	m.reports[id] = rep
	m.pdfs[id] = pdf
	return nil
}

func (m *memRepo) MarkFailed(ctx context.Context, id int64, cause string) error {
	rep, ok := m.reports[id]
	if !ok {
		return ErrNotFound
	}
	rep.Status = StatusFailed
	rep.Error = cause
	m.reports[id] = rep
	return nil
}

func (m *memRepo) GetPDF(ctx context.Context, id int64) ([]byte, error) {
	pdf, ok := m.pdfs[id]
	if !ok {
		return nil, ErrNotReady
	}
	return pdf, nil
}

type fakeSales struct {
	sales []sales.Sale
}

func (f *fakeSales) List(ctx context.Context, filter sales.ListFilter) ([]sales.Sale, int, error) {
	return f.sales, len(f.sales), nil
}

type fakeStock struct {
	products []catalog.Product
}

func (f *fakeStock) List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, int, error) {
	return f.products, len(f.products), nil
}

type fakeFinance struct{}

func (f *fakeFinance) List(ctx context.Context, filter finance.ListFilter) ([]finance.Transaction, int, error) {
	return nil, 0, nil
}

func (f *fakeFinance) Summarize(ctx context.Context, from, to time.Time) (finance.Summary, error) {
	return finance.Summary{
		From:    from,
		To:      to,
		Income:  decimal.NewFromInt(87000),
		Expense: decimal.NewFromInt(27000),
		Net:     decimal.NewFromInt(60000),
	}, nil
}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7 fake"), nil
}

type fakeQueue struct {
	enqueued []int64
}

func (f *fakeQueue) EnqueueReportRender(ctx context.Context, reportID int64) (*asynq.TaskInfo, error) {
	f.enqueued = append(f.enqueued, reportID)
	return &asynq.TaskInfo{}, nil
}

func newTestService(repo *memRepo, renderer Renderer, queue Enqueuer) *Service {
	return NewService(ServiceDeps{
		Repo: repo,
		Sales: &fakeSales{sales: []sales.Sale{{
			Number:        "TRX-20260901-0001",
			PaymentMethod: sales.PaymentCash,
			Total:         87000,
			TotalProfit:   29000,
			CreatedAt:     time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		}}},
		Stock:    &fakeStock{products: []catalog.Product{{Code: "BRS-001", Name: "Beras Pandan Wangi 5kg", Stock: 3, MinStock: 10, Unit: "karung", CostPrice: 8000}}},
		Finances: &fakeFinance{},
		Renderer: renderer,
		Queue:    queue,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func period() (time.Time, time.Time) {
	return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
}

func TestApprovalQueuesRender(t *testing.T) {
	repo := newMemRepo()
	queue := &fakeQueue{}
	svc := newTestService(repo, &fakeRenderer{}, queue)
	ctx := context.Background()
	from, to := period()

	rep, err := svc.Request(ctx, RequestInput{Kind: KindSalesDaily, PeriodStart: from, PeriodEnd: to, ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, StatusPending, rep.Status)

	rep, err = svc.Approve(ctx, rep.ID, 2, "ok")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, rep.Status)
	require.Equal(t, int64(2), rep.ReviewedBy)
	require.Equal(t, []int64{rep.ID}, queue.enqueued)

	// a reviewed report cannot be reviewed again
	_, err = svc.Reject(ctx, rep.ID, 2, "nope")
	require.ErrorIs(t, err, ErrNotPending)
}

func TestRejectSkipsQueue(t *testing.T) {
	repo := newMemRepo()
	queue := &fakeQueue{}
	svc := newTestService(repo, &fakeRenderer{}, queue)
	ctx := context.Background()
	from, to := period()

	rep, err := svc.Request(ctx, RequestInput{Kind: KindStock, PeriodStart: from, PeriodEnd: to, ActorID: 1})
	require.NoError(t, err)

	rep, err = svc.Reject(ctx, rep.ID, 2, "periode salah")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rep.Status)
	require.Empty(t, queue.enqueued)
}

func TestRenderStoresPDF(t *testing.T) {
	repo := newMemRepo()
	renderer := &fakeRenderer{}
	svc := newTestService(repo, renderer, &fakeQueue{})
	ctx := context.Background()
	from, to := period()

	rep, err := svc.Request(ctx, RequestInput{Kind: KindSalesDaily, PeriodStart: from, PeriodEnd: to, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, rep.ID, 2, "")
	require.NoError(t, err)

	require.NoError(t, svc.Render(ctx, rep.ID))
	require.Contains(t, renderer.html, "TRX-20260901-0001")
	require.Contains(t, renderer.html, "Laporan Penjualan Harian")

	stored, err := svc.Get(ctx, rep.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReady, stored.Status)

	pdf, err := svc.Download(ctx, rep.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(pdf), "%PDF"))
}

func TestRenderRequiresApproval(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeQueue{})
	ctx := context.Background()
	from, to := period()

	rep, err := svc.Request(ctx, RequestInput{Kind: KindFinance, PeriodStart: from, PeriodEnd: to, ActorID: 1})
	require.NoError(t, err)

	err = svc.Render(ctx, rep.ID)
	require.ErrorIs(t, err, ErrNotApproved)
}

func TestRenderFailureMarksReport(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeRenderer{err: fmt.Errorf("gotenberg unreachable")}, &fakeQueue{})
	ctx := context.Background()
	from, to := period()

	rep, err := svc.Request(ctx, RequestInput{Kind: KindStock, PeriodStart: from, PeriodEnd: to, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, rep.ID, 2, "")
	require.NoError(t, err)

	err = svc.Render(ctx, rep.ID)
	require.Error(t, err)

	stored, err := svc.Get(ctx, rep.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, stored.Status)
	require.Contains(t, stored.Error, "gotenberg")
}

func TestRequestValidation(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeRenderer{}, &fakeQueue{})
	ctx := context.Background()
	from, to := period()

	_, err := svc.Request(ctx, RequestInput{Kind: "weekly", PeriodStart: from, PeriodEnd: to})
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = svc.Request(ctx, RequestInput{Kind: KindStock, PeriodStart: to, PeriodEnd: from})
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestBuilderFormatsRupiahAndEscapes(t *testing.T) {
	b := NewBuilder()
	require.Equal(t, "Rp87.000", b.Rupiah(87000))

	from, to := period()
	html := b.SalesReport("Laporan <Uji>", from, to, nil)
	require.Contains(t, html, "Laporan &lt;Uji&gt;")
	require.NotContains(t, html, "<Uji>")
}
