package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tokoberas/tokoberas/internal/inventory"
	"github.com/tokoberas/tokoberas/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, saleID int64) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}

// StockPoster posts stock movements inside a caller-held transaction.
type StockPoster interface {
	RecordMovementTx(ctx context.Context, tx inventory.TxRepository, input inventory.MovementInput) (inventory.Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the sale lifecycle. Line subtotals and sale totals are
// denormalized caches: every line mutation recomputes the touched line from
// the product's current cost price and then recomputes the sale totals from
// a fresh read of all lines, inside the same transaction as the mutation.
type Service struct {
	repo        RepositoryPort
	stock       StockPoster
	integration IntegrationHandler
	audit       AuditPort
	logger      *slog.Logger
}

// NewService builds Service. integration may be nil when no financial
// bookkeeping is attached.
func NewService(repo RepositoryPort, stock StockPoster, integration IntegrationHandler, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, integration: integration, audit: audit, logger: logger}
}

// Create opens a new pending sale with its initial lines.
func (s *Service) Create(ctx context.Context, input CreateSaleInput) (Sale, error) {
	if !input.PaymentMethod.Valid() {
		return Sale{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidLine, input.PaymentMethod)
	}
	if input.Channel == "" {
		input.Channel = ChannelStore
	}
	if !input.Channel.Valid() {
		return Sale{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidLine, input.Channel)
	}
	for _, line := range input.Lines {
		if line.Qty <= 0 || line.UnitPrice < 0 {
			return Sale{}, ErrInvalidLine
		}
	}

	var created Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextSaleNumber(ctx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		sale := Sale{
			Number:        number,
			CustomerName:  input.CustomerName,
			CustomerPhone: input.CustomerPhone,
			Channel:       input.Channel,
			Status:        StatusPending,
			PaymentMethod: input.PaymentMethod,
			Note:          input.Note,
			CreatedBy:     input.ActorID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		saleID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = saleID

		for _, in := range input.Lines {
			if _, err := s.insertLine(ctx, tx, saleID, in, now); err != nil {
				return err
			}
		}
		if err := s.recomputeSaleTotals(ctx, tx, saleID); err != nil {
			return err
		}

		refreshed, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		refreshed.Lines, err = tx.ListLines(ctx, saleID)
		if err != nil {
			return err
		}
		created = refreshed
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.auditSale(ctx, input.ActorID, "sales:create", created.ID, map[string]any{"number": created.Number})
	return created, nil
}

// Get returns one sale with its lines.
func (s *Service) Get(ctx context.Context, saleID int64) (Sale, error) {
	return s.repo.Get(ctx, saleID)
}

// List returns sales matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// AddLine appends a line to an editable sale and refreshes the totals.
func (s *Service) AddLine(ctx context.Context, saleID int64, input LineInput, actorID int64) (Sale, error) {
	if input.Qty <= 0 || input.UnitPrice < 0 {
		return Sale{}, ErrInvalidLine
	}
	sale, err := s.mutateLines(ctx, saleID, func(ctx context.Context, tx TxRepository) error {
		_, err := s.insertLine(ctx, tx, saleID, input, time.Now().UTC())
		return err
	})
	if err != nil {
		return Sale{}, err
	}
	s.auditSale(ctx, actorID, "sales:add_line", saleID, map[string]any{"product_id": input.ProductID, "qty": input.Qty})
	return sale, nil
}

// UpdateLine changes a line's quantity or price and refreshes the totals.
func (s *Service) UpdateLine(ctx context.Context, saleID, lineID int64, qty, unitPrice float64, actorID int64) (Sale, error) {
	if qty <= 0 || unitPrice < 0 {
		return Sale{}, ErrInvalidLine
	}
	sale, err := s.mutateLines(ctx, saleID, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetLine(ctx, saleID, lineID)
		if err != nil {
			return err
		}
		if err := tx.UpdateLineQty(ctx, line.ID, qty, unitPrice); err != nil {
			return err
		}
		line.Qty = qty
		line.UnitPrice = unitPrice
		return s.recomputeLine(ctx, tx, line)
	})
	if err != nil {
		return Sale{}, err
	}
	s.auditSale(ctx, actorID, "sales:update_line", saleID, map[string]any{"line_id": lineID, "qty": qty})
	return sale, nil
}

// RemoveLine deletes a line and refreshes the totals. Removing the last line
// leaves a valid sale with all totals at zero.
func (s *Service) RemoveLine(ctx context.Context, saleID, lineID int64, actorID int64) (Sale, error) {
	sale, err := s.mutateLines(ctx, saleID, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetLine(ctx, saleID, lineID); err != nil {
			return err
		}
		return tx.DeleteLine(ctx, lineID)
	})
	if err != nil {
		return Sale{}, err
	}
	s.auditSale(ctx, actorID, "sales:remove_line", saleID, map[string]any{"line_id": lineID})
	return sale, nil
}

// UpdateStatus moves a sale along its lifecycle. Completion deducts stock for
// every line in the same transaction; a shortfall on any line aborts the whole
// change. The completion event fires once, after commit, only on an actual
// transition into completed.
func (s *Service) UpdateStatus(ctx context.Context, saleID int64, to SaleStatus, actorID int64) (Sale, error) {
	if !to.Valid() {
		return Sale{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	var (
		updated   Sale
		completed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == to {
			updated = sale
			return nil
		}
		if !sale.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sale.Status, to)
		}

		now := time.Now().UTC()
		sale.Status = to
		switch to {
		case StatusPaid:
			sale.PaidAt = &now
		case StatusCompleted:
			if sale.PaidAt == nil {
				sale.PaidAt = &now
			}
			sale.CompletedAt = &now
			if err := s.completeSale(ctx, tx, &sale, actorID, now); err != nil {
				return err
			}
			completed = true
		}
		if err := tx.UpdateSaleStatus(ctx, sale); err != nil {
			return err
		}
		updated = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	if completed {
		s.auditSale(ctx, actorID, "sales:complete", updated.ID, map[string]any{"total": updated.Total})
		s.notifyCompleted(ctx, updated, actorID)
	} else {
		s.auditSale(ctx, actorID, fmt.Sprintf("sales:%s", updated.Status), updated.ID, nil)
	}
	return updated, nil
}

// completeSale re-rolls every line against current product costs, refreshes
// the totals and posts one out-movement per line. Runs under the sale's row
// lock; sale is updated in place with the final totals.
func (s *Service) completeSale(ctx context.Context, tx TxRepository, sale *Sale, actorID int64, now time.Time) error {
	lines, err := tx.ListLines(ctx, sale.ID)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return ErrEmptySale
	}
	for _, line := range lines {
		if err := s.recomputeLine(ctx, tx, line); err != nil {
			return err
		}
	}
	if err := s.recomputeSaleTotals(ctx, tx, sale.ID); err != nil {
		return err
	}
	lines, err = tx.ListLines(ctx, sale.ID)
	if err != nil {
		return err
	}
	var total, totalCost, totalProfit float64
	for _, line := range lines {
		total += line.Subtotal
		totalCost += line.SubtotalCost
		totalProfit += line.Profit
	}
	sale.Total = total
	sale.TotalCost = totalCost
	sale.TotalProfit = totalProfit
	sale.Lines = lines

	inv := tx.Inventory()
	for _, line := range lines {
		_, err := s.stock.RecordMovementTx(ctx, inv, inventory.MovementInput{
			ProductID: line.ProductID,
			ActorID:   actorID,
			Type:      inventory.MovementOut,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			Note:      fmt.Sprintf("penjualan %s", sale.Number),
			Ref:       inventory.MovementRef{Kind: inventory.RefSale, ID: sale.ID},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notifyCompleted(ctx context.Context, sale Sale, actorID int64) {
	if s.integration == nil {
		return
	}
	evt := CompletedEvent{
		SaleID:        sale.ID,
		Number:        sale.Number,
		Total:         sale.Total,
		TotalCost:     sale.TotalCost,
		TotalProfit:   sale.TotalProfit,
		PaymentMethod: sale.PaymentMethod,
		ActorID:       actorID,
		CompletedAt:   time.Now().UTC(),
	}
	if sale.CompletedAt != nil {
		evt.CompletedAt = *sale.CompletedAt
	}
	if err := s.integration.HandleSaleCompleted(ctx, evt); err != nil {
		s.logger.Error("sale completion hook", slog.Int64("sale_id", sale.ID), slog.Any("error", err))
	}
}

// mutateLines runs one line mutation under the sale's row lock and refreshes
// the totals afterwards.
func (s *Service) mutateLines(ctx context.Context, saleID int64, mutate func(context.Context, TxRepository) error) (Sale, error) {
	var result Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if !sale.Status.Editable() {
			return ErrNotEditable
		}
		if err := mutate(ctx, tx); err != nil {
			return err
		}
		if err := s.recomputeSaleTotals(ctx, tx, saleID); err != nil {
			return err
		}
		refreshed, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		refreshed.Lines, err = tx.ListLines(ctx, saleID)
		if err != nil {
			return err
		}
		result = refreshed
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	return result, nil
}

func (s *Service) insertLine(ctx context.Context, tx TxRepository, saleID int64, input LineInput, now time.Time) (SaleLine, error) {
	basis, found, err := tx.GetProductBasis(ctx, input.ProductID)
	if err != nil {
		return SaleLine{}, err
	}
	if !found {
		return SaleLine{}, fmt.Errorf("%w: product %d", ErrLineNotFound, input.ProductID)
	}
	if !basis.IsActive {
		return SaleLine{}, fmt.Errorf("%w: %s", ErrProductInactive, basis.Name)
	}
	unitPrice := input.UnitPrice
	if unitPrice == 0 {
		unitPrice = basis.SellPrice
	}
	line := SaleLine{
		SaleID:       saleID,
		ProductID:    basis.ID,
		ProductName:  basis.Name,
		Qty:          input.Qty,
		UnitPrice:    unitPrice,
		Subtotal:     input.Qty * unitPrice,
		CostBasis:    basis.CostPrice,
		SubtotalCost: input.Qty * basis.CostPrice,
		CreatedAt:    now,
	}
	line.Profit = line.Subtotal - line.SubtotalCost
	id, err := tx.InsertLine(ctx, line)
	if err != nil {
		return SaleLine{}, err
	}
	line.ID = id
	return line, nil
}

// recomputeLine re-derives a line's subtotal, cost and profit from its stored
// qty and price and the product's current cost price. A vanished product row
// leaves the line's last computed values in place.
func (s *Service) recomputeLine(ctx context.Context, tx TxRepository, line SaleLine) error {
	basis, found, err := tx.GetProductBasis(ctx, line.ProductID)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Warn("line rollup skipped, product missing",
			slog.Int64("sale_id", line.SaleID), slog.Int64("product_id", line.ProductID))
		return nil
	}
	line.ProductName = basis.Name
	line.Subtotal = line.Qty * line.UnitPrice
	line.CostBasis = basis.CostPrice
	line.SubtotalCost = line.Qty * basis.CostPrice
	line.Profit = line.Subtotal - line.SubtotalCost
	return tx.UpdateLineRollup(ctx, line)
}

// recomputeSaleTotals re-derives the sale's totals from a fresh read of all
// its lines. A vanished sale row makes this a no-op.
func (s *Service) recomputeSaleTotals(ctx context.Context, tx TxRepository, saleID int64) error {
	exists, err := tx.SaleExists(ctx, saleID)
	if err != nil {
		return err
	}
	if !exists {
		s.logger.Warn("sale rollup skipped, sale missing", slog.Int64("sale_id", saleID))
		return nil
	}
	lines, err := tx.ListLines(ctx, saleID)
	if err != nil {
		return err
	}
	var total, totalCost, totalProfit float64
	for _, line := range lines {
		total += line.Subtotal
		totalCost += line.SubtotalCost
		totalProfit += line.Profit
	}
	return tx.UpdateSaleTotals(ctx, saleID, total, totalCost, totalProfit)
}

func (s *Service) auditSale(ctx context.Context, actorID int64, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", saleID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit sale", slog.Int64("sale_id", saleID), slog.Any("error", err))
	}
}
