package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tokoberas/tokoberas/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// Service owns the stock ledger write path. Every stock change goes through
// one transaction that locks the product row, appends a ledger entry and
// writes the new stock aggregate, so the product's stock always equals the
// stock_after of its most recent committed entry.
type Service struct {
	repo     RepositoryPort
	actors   ActorResolver
	audit    AuditPort
	logger   *slog.Logger
	allowNeg bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, actors ActorResolver, audit AuditPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, actors: actors, audit: audit, logger: logger, allowNeg: cfg.AllowNegativeStock}
}

// RecordMovement appends one ledger entry and moves the product stock with it.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if input.ProductID == 0 {
		return Movement{}, ErrProductNotFound
	}
	delta, err := signedDelta(input.Type, input.Qty)
	if err != nil {
		return Movement{}, err
	}

	var movement Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := s.applyMovement(ctx, tx, input, delta)
		if err != nil {
			return err
		}
		movement = m
		return nil
	})
	if err != nil {
		return Movement{}, err
	}

	s.auditMovement(ctx, movement)
	return movement, nil
}

// RecordMovementTx is RecordMovement for callers that already hold a
// transaction, e.g. sale completion posting one out-movement per line. The
// row lock taken here spans the caller's whole transaction.
func (s *Service) RecordMovementTx(ctx context.Context, tx TxRepository, input MovementInput) (Movement, error) {
	if input.ProductID == 0 {
		return Movement{}, ErrProductNotFound
	}
	delta, err := signedDelta(input.Type, input.Qty)
	if err != nil {
		return Movement{}, err
	}
	return s.applyMovement(ctx, tx, input, delta)
}

// RecordInitialStock seeds the ledger for a freshly created product whose
// starting stock is already set on the row. A zero starting stock writes
// nothing. The caller decides whether a failure here is fatal; for product
// creation it is not (best-effort policy, surfaced as a warning upstream).
func (s *Service) RecordInitialStock(ctx context.Context, productID int64, createdBy int64, note string) (*Movement, error) {
	actorID := createdBy
	if actorID == 0 {
		resolved, err := s.resolveActor(ctx)
		if err != nil {
			return nil, err
		}
		actorID = resolved
	}

	var movement *Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product.Stock == 0 {
			return nil
		}
		m := Movement{
			ProductID:   product.ID,
			ActorID:     actorID,
			Type:        MovementInitial,
			Qty:         product.Stock,
			StockBefore: 0,
			StockAfter:  product.Stock,
			UnitCost:    product.CostPrice,
			UnitPrice:   product.SellPrice,
			Note:        note,
			Ref:         MovementRef{Kind: RefProduct, ID: product.ID},
			CreatedAt:   time.Now().UTC(),
		}
		id, err := tx.InsertMovement(ctx, m)
		if err != nil {
			return err
		}
		m.ID = id
		movement = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if movement != nil {
		s.auditMovement(ctx, *movement)
	}
	return movement, nil
}

// ListMovements returns ledger entries, oldest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID == 0 {
		return nil, ErrProductNotFound
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrUnknownMovementType
	}
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) applyMovement(ctx context.Context, tx TxRepository, input MovementInput, delta float64) (Movement, error) {
	product, err := tx.GetProductForUpdate(ctx, input.ProductID)
	if err != nil {
		return Movement{}, err
	}

	stockBefore := product.Stock
	stockAfter := stockBefore + delta
	if stockAfter < 0 && !s.allowNeg {
		return Movement{}, &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   -delta,
			Available:   stockBefore,
		}
	}

	unitPrice := input.UnitPrice
	if unitPrice == 0 {
		unitPrice = product.SellPrice
	}
	movement := Movement{
		ProductID:   product.ID,
		ActorID:     input.ActorID,
		Type:        input.Type,
		Qty:         delta,
		StockBefore: stockBefore,
		StockAfter:  stockAfter,
		UnitCost:    product.CostPrice,
		UnitPrice:   unitPrice,
		Note:        input.Note,
		Ref:         input.Ref,
		Meta:        input.Meta,
		CreatedAt:   time.Now().UTC(),
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, err
	}
	movement.ID = id

	if err := tx.UpdateProductStock(ctx, product.ID, stockAfter); err != nil {
		return Movement{}, err
	}
	return movement, nil
}

func (s *Service) resolveActor(ctx context.Context) (int64, error) {
	if s.actors == nil {
		return DefaultActorID, nil
	}
	return s.actors.Resolve(ctx)
}

func (s *Service) auditMovement(ctx context.Context, m Movement) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  m.ActorID,
		Action:   fmt.Sprintf("inventory:%s", m.Type),
		Entity:   "stock_movement",
		EntityID: fmt.Sprintf("%d", m.ID),
		Meta: map[string]any{
			"product_id":   m.ProductID,
			"qty":          m.Qty,
			"stock_before": m.StockBefore,
			"stock_after":  m.StockAfter,
		},
	})
	if err != nil {
		s.logger.Warn("audit stock movement", slog.Int64("movement_id", m.ID), slog.Any("error", err))
	}
}

func signedDelta(t MovementType, qty float64) (float64, error) {
	if !t.Valid() {
		return 0, ErrUnknownMovementType
	}
	if qty == 0 {
		return 0, ErrInvalidQuantity
	}
	switch t.direction() {
	case 1:
		if qty < 0 {
			return 0, ErrInvalidQuantity
		}
		return qty, nil
	case -1:
		if qty < 0 {
			return 0, ErrInvalidQuantity
		}
		return -qty, nil
	default:
		return qty, nil
	}
}

// IsInsufficientStock reports whether err is a stock shortfall rejection.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}
