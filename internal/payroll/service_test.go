package payroll

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	records map[int64]Payroll
	nextID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[int64]Payroll{}}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := map[int64]Payroll{}
	for k, v := range m.records {
		saved[k] = v
	}
	if err := fn(ctx, &memTx{repo: m}); err != nil {
		m.records = saved
		return err
	}
	return nil
}

func (m *memRepo) Insert(ctx context.Context, p Payroll) (int64, error) {
	for _, existing := range m.records {
		if existing.UserID == p.UserID && existing.Period == p.Period {
			return 0, ErrDuplicatePeriod
		}
	}
	m.nextID++
	p.ID = m.nextID
	m.records[p.ID] = p
	return p.ID, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (Payroll, error) {
	p, ok := m.records[id]
	if !ok {
		return Payroll{}, ErrNotFound
	}
	return p, nil
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]Payroll, int, error) {
	out := []Payroll{}
	for _, p := range m.records {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Period != "" && p.Period != filter.Period {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) GetForUpdate(ctx context.Context, id int64) (Payroll, error) {
	return t.repo.Get(ctx, id)
}

func (t *memTx) Update(ctx context.Context, p Payroll) error {
	if _, ok := t.repo.records[p.ID]; !ok {
		return ErrNotFound
	}
	t.repo.records[p.ID] = p
	return nil
}

type recordingHook struct {
	events []PaidEvent
	err    error
}

func (h *recordingHook) HandlePayrollPaid(ctx context.Context, evt PaidEvent) error {
	h.events = append(h.events, evt)
	return h.err
}

func testService(repo *memRepo, hook IntegrationHandler) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, hook, nil, logger)
}

func draftInput() CreateInput {
	return CreateInput{
		UserID:       3,
		EmployeeName: "Siti Rahma",
		Period:       "2026-08",
		BaseSalary:   decimal.NewFromInt(2500000),
		Allowance:    decimal.NewFromInt(300000),
		Deduction:    decimal.NewFromInt(100000),
		ActorID:      1,
	}
}

func TestCreateDerivesNetAmount(t *testing.T) {
	svc := testService(newMemRepo(), nil)

	p, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, p.Status)
	require.True(t, p.NetAmount.Equal(decimal.NewFromInt(2700000)))
}

func TestCreateRejectsBadPeriodAndDuplicate(t *testing.T) {
	svc := testService(newMemRepo(), nil)
	ctx := context.Background()

	bad := draftInput()
	bad.Period = "08-2026"
	_, err := svc.Create(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = svc.Create(ctx, draftInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, draftInput())
	require.ErrorIs(t, err, ErrDuplicatePeriod)
}

func TestUpdateOnlyDrafts(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)

	newBase := decimal.NewFromInt(2600000)
	p, err = svc.Update(ctx, p.ID, UpdateInput{BaseSalary: &newBase})
	require.NoError(t, err)
	require.True(t, p.NetAmount.Equal(decimal.NewFromInt(2800000)))

	_, err = svc.Approve(ctx, p.ID, 1)
	require.NoError(t, err)

	_, err = svc.Update(ctx, p.ID, UpdateInput{BaseSalary: &newBase})
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestPayFiresHookOnceOnActualTransition(t *testing.T) {
	repo := newMemRepo()
	hook := &recordingHook{}
	svc := testService(repo, hook)
	ctx := context.Background()

	p, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)

	// draft cannot be paid directly
	_, err = svc.Pay(ctx, p.ID, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Empty(t, hook.events)

	p, err = svc.Approve(ctx, p.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, p.ApprovedAt)

	p, err = svc.Pay(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, p.Status)
	require.NotNil(t, p.PaidAt)
	require.Len(t, hook.events, 1)
	require.True(t, hook.events[0].NetAmount.Equal(decimal.NewFromInt(2700000)))
	require.Equal(t, int64(2), hook.events[0].ActorID)

	// paying again is a no-op and fires nothing
	_, err = svc.Pay(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, hook.events, 1)
}

func TestPaySurvivesFailingHook(t *testing.T) {
	repo := newMemRepo()
	hook := &recordingHook{err: fmt.Errorf("ledger offline")}
	svc := testService(repo, hook)
	ctx := context.Background()

	p, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	_, err = svc.Approve(ctx, p.ID, 1)
	require.NoError(t, err)

	p, err = svc.Pay(ctx, p.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, p.Status)
}

func TestNetMustBePositive(t *testing.T) {
	svc := testService(newMemRepo(), nil)

	input := draftInput()
	input.Deduction = decimal.NewFromInt(3000000)
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, ErrInvalidAmount)
}
