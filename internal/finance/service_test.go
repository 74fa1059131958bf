package finance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tokoberas/tokoberas/internal/payroll"
	"github.com/tokoberas/tokoberas/internal/sales"
)

type memRepo struct {
	txns   []Transaction
	nextID int64
}

func (m *memRepo) Insert(ctx context.Context, txn Transaction) (int64, error) {
	if txn.RefID != 0 {
		for _, existing := range m.txns {
			if existing.Category == txn.Category && existing.RefKind == txn.RefKind && existing.RefID == txn.RefID {
				return 0, ErrDuplicateRef
			}
		}
	}
	m.nextID++
	txn.ID = m.nextID
	m.txns = append(m.txns, txn)
	return txn.ID, nil
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	out := []Transaction{}
	for _, txn := range m.txns {
		if filter.Kind != "" && txn.Kind != filter.Kind {
			continue
		}
		if filter.Category != "" && txn.Category != filter.Category {
			continue
		}
		out = append(out, txn)
	}
	return out, len(out), nil
}

func (m *memRepo) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	income, expense := decimal.Zero, decimal.Zero
	for _, txn := range m.txns {
		if txn.OccurredAt.Before(from) || txn.OccurredAt.After(to) {
			continue
		}
		switch txn.Kind {
		case KindIncome:
			income = income.Add(txn.Amount)
		case KindExpense:
			expense = expense.Add(txn.Amount)
		}
	}
	return Summary{From: from, To: to, Income: income, Expense: expense, Net: income.Sub(expense)}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordValidatesInput(t *testing.T) {
	svc := NewService(&memRepo{}, testLogger())
	ctx := context.Background()

	_, err := svc.Record(ctx, RecordInput{Kind: "debit", Category: CategorySales, Amount: decimal.NewFromInt(100)})
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = svc.Record(ctx, RecordInput{Kind: KindIncome, Category: "misc", Amount: decimal.NewFromInt(100)})
	require.ErrorIs(t, err, ErrUnknownCategory)

	_, err = svc.Record(ctx, RecordInput{Kind: KindIncome, Category: CategorySales, Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidAmount)

	txn, err := svc.Record(ctx, RecordInput{
		Kind:        KindIncome,
		Category:    CategorySales,
		Amount:      decimal.NewFromInt(87000),
		Description: "penjualan TRX-20260901-0001",
	})
	require.NoError(t, err)
	require.Equal(t, RefNone, txn.RefKind)
	require.False(t, txn.OccurredAt.IsZero())
}

func TestSummarizeNetsIncomeAgainstExpense(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, testLogger())
	ctx := context.Background()

	_, err := svc.Record(ctx, RecordInput{Kind: KindIncome, Category: CategorySales, Amount: decimal.NewFromInt(87000), Description: "penjualan"})
	require.NoError(t, err)
	_, err = svc.Record(ctx, RecordInput{Kind: KindExpense, Category: CategoryPayroll, Amount: decimal.NewFromInt(27000), Description: "gaji"})
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx, time.Now().Add(-time.Hour), time.Time{})
	require.NoError(t, err)
	require.True(t, summary.Net.Equal(decimal.NewFromInt(60000)))
}

func TestSaleHookPostsIncomeOnce(t *testing.T) {
	repo := &memRepo{}
	hooks := NewHooks(NewService(repo, testLogger()), testLogger())
	ctx := context.Background()

	evt := sales.CompletedEvent{
		SaleID:      42,
		Number:      "TRX-20260901-0001",
		Total:       87000,
		CompletedAt: time.Now().UTC(),
	}
	require.NoError(t, hooks.HandleSaleCompleted(ctx, evt))
	require.Len(t, repo.txns, 1)
	require.Equal(t, KindIncome, repo.txns[0].Kind)
	require.Equal(t, CategorySales, repo.txns[0].Category)
	require.Equal(t, RefSale, repo.txns[0].RefKind)
	require.Equal(t, int64(42), repo.txns[0].RefID)
	require.True(t, repo.txns[0].Amount.Equal(decimal.NewFromInt(87000)))

	// redelivery of the same sale is absorbed
	require.NoError(t, hooks.HandleSaleCompleted(ctx, evt))
	require.Len(t, repo.txns, 1)
}

func TestPayrollHookPostsExpense(t *testing.T) {
	repo := &memRepo{}
	hooks := NewHooks(NewService(repo, testLogger()), testLogger())

	evt := payroll.PaidEvent{
		PayrollID:    7,
		EmployeeName: "Siti Rahma",
		Period:       "2026-08",
		NetAmount:    decimal.NewFromInt(2700000),
		PaidAt:       time.Now().UTC(),
	}
	require.NoError(t, hooks.HandlePayrollPaid(context.Background(), evt))
	require.Len(t, repo.txns, 1)
	require.Equal(t, KindExpense, repo.txns[0].Kind)
	require.Equal(t, CategoryPayroll, repo.txns[0].Category)
	require.Equal(t, RefPayroll, repo.txns[0].RefKind)
}
