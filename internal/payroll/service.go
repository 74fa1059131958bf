package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokoberas/tokoberas/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, p Payroll) (int64, error)
	Get(ctx context.Context, id int64) (Payroll, error)
	List(ctx context.Context, filter ListFilter) ([]Payroll, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the payroll lifecycle. The payout event fires once, after
// commit, only on an actual transition into paid.
type Service struct {
	repo        RepositoryPort
	integration IntegrationHandler
	audit       AuditPort
	logger      *slog.Logger
}

// NewService builds Service. integration may be nil when no financial
// bookkeeping is attached.
func NewService(repo RepositoryPort, integration IntegrationHandler, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, integration: integration, audit: audit, logger: logger}
}

// Create opens a draft payroll record.
func (s *Service) Create(ctx context.Context, input CreateInput) (Payroll, error) {
	if !ValidPeriod(input.Period) {
		return Payroll{}, ErrInvalidPeriod
	}
	net, err := netAmount(input.BaseSalary, input.Allowance, input.Deduction)
	if err != nil {
		return Payroll{}, err
	}
	now := time.Now().UTC()
	p := Payroll{
		UserID:       input.UserID,
		EmployeeName: input.EmployeeName,
		Period:       input.Period,
		BaseSalary:   input.BaseSalary,
		Allowance:    input.Allowance,
		Deduction:    input.Deduction,
		NetAmount:    net,
		Status:       StatusDraft,
		Note:         input.Note,
		CreatedBy:    input.ActorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.repo.Insert(ctx, p)
	if err != nil {
		return Payroll{}, err
	}
	p.ID = id
	s.auditPayroll(ctx, input.ActorID, "payroll:create", id, map[string]any{"period": p.Period})
	return p, nil
}

// Get returns one payroll record.
func (s *Service) Get(ctx context.Context, id int64) (Payroll, error) {
	return s.repo.Get(ctx, id)
}

// List returns payroll records matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Payroll, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// Update changes the amounts on a draft and rederives the net.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Payroll, error) {
	var updated Payroll
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusDraft {
			return ErrNotDraft
		}
		if input.BaseSalary != nil {
			p.BaseSalary = *input.BaseSalary
		}
		if input.Allowance != nil {
			p.Allowance = *input.Allowance
		}
		if input.Deduction != nil {
			p.Deduction = *input.Deduction
		}
		if input.Note != nil {
			p.Note = *input.Note
		}
		net, err := netAmount(p.BaseSalary, p.Allowance, p.Deduction)
		if err != nil {
			return err
		}
		p.NetAmount = net
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Payroll{}, err
	}
	s.auditPayroll(ctx, input.ActorID, "payroll:update", id, nil)
	return updated, nil
}

// Approve moves a draft to approved.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (Payroll, error) {
	return s.transition(ctx, id, StatusApproved, actorID)
}

// Pay moves an approved record to paid and posts the payout afterwards.
func (s *Service) Pay(ctx context.Context, id, actorID int64) (Payroll, error) {
	return s.transition(ctx, id, StatusPaid, actorID)
}

func (s *Service) transition(ctx context.Context, id int64, to Status, actorID int64) (Payroll, error) {
	var (
		updated Payroll
		paid    bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == to {
			updated = p
			return nil
		}
		if !p.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
		}
		now := time.Now().UTC()
		p.Status = to
		switch to {
		case StatusApproved:
			p.ApprovedBy = actorID
			p.ApprovedAt = &now
		case StatusPaid:
			p.PaidBy = actorID
			p.PaidAt = &now
			paid = true
		}
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Payroll{}, err
	}

	s.auditPayroll(ctx, actorID, fmt.Sprintf("payroll:%s", to), id, nil)
	if paid {
		s.notifyPaid(ctx, updated, actorID)
	}
	return updated, nil
}

func (s *Service) notifyPaid(ctx context.Context, p Payroll, actorID int64) {
	if s.integration == nil {
		return
	}
	evt := PaidEvent{
		PayrollID:    p.ID,
		UserID:       p.UserID,
		EmployeeName: p.EmployeeName,
		Period:       p.Period,
		NetAmount:    p.NetAmount,
		ActorID:      actorID,
		PaidAt:       time.Now().UTC(),
	}
	if p.PaidAt != nil {
		evt.PaidAt = *p.PaidAt
	}
	if err := s.integration.HandlePayrollPaid(ctx, evt); err != nil {
		s.logger.Error("payroll payout hook", slog.Int64("payroll_id", p.ID), slog.Any("error", err))
	}
}

func (s *Service) auditPayroll(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "payroll",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit payroll", slog.Int64("payroll_id", id), slog.Any("error", err))
	}
}

func netAmount(base, allowance, deduction decimal.Decimal) (decimal.Decimal, error) {
	if base.IsNegative() || allowance.IsNegative() || deduction.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	net := base.Add(allowance).Sub(deduction)
	if !net.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return net, nil
}
