package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tokoberas/tokoberas/internal/payroll"
	"github.com/tokoberas/tokoberas/internal/sales"
)

// Hooks bridges completed sales and paid payroll runs into the cash ledger.
// It satisfies sales.IntegrationHandler and payroll.IntegrationHandler.
type Hooks struct {
	service *Service
	logger  *slog.Logger
}

// NewHooks constructs Hooks.
func NewHooks(service *Service, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{service: service, logger: logger}
}

// HandleSaleCompleted posts the sale total as income. A repeat delivery of
// the same sale is absorbed by the reference uniqueness and reported as
// success.
func (h *Hooks) HandleSaleCompleted(ctx context.Context, evt sales.CompletedEvent) error {
	_, err := h.service.Record(ctx, RecordInput{
		Kind:        KindIncome,
		Category:    CategorySales,
		Amount:      decimal.NewFromFloat(evt.Total),
		Description: fmt.Sprintf("penjualan %s", evt.Number),
		RefKind:     RefSale,
		RefID:       evt.SaleID,
		ActorID:     evt.ActorID,
		OccurredAt:  evt.CompletedAt,
	})
	if errors.Is(err, ErrDuplicateRef) {
		h.logger.Info("sale already posted to ledger", slog.Int64("sale_id", evt.SaleID))
		return nil
	}
	return err
}

// HandlePayrollPaid posts the payroll net amount as an expense.
func (h *Hooks) HandlePayrollPaid(ctx context.Context, evt payroll.PaidEvent) error {
	_, err := h.service.Record(ctx, RecordInput{
		Kind:        KindExpense,
		Category:    CategoryPayroll,
		Amount:      evt.NetAmount,
		Description: fmt.Sprintf("gaji %s periode %s", evt.EmployeeName, evt.Period),
		RefKind:     RefPayroll,
		RefID:       evt.PayrollID,
		ActorID:     evt.ActorID,
		OccurredAt:  evt.PaidAt,
	})
	if errors.Is(err, ErrDuplicateRef) {
		h.logger.Info("payroll already posted to ledger", slog.Int64("payroll_id", evt.PayrollID))
		return nil
	}
	return err
}
