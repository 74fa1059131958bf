package finance

import (
	"context"
	"log/slog"
	"time"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, txn Transaction) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, int, error)
	Summarize(ctx context.Context, from, to time.Time) (Summary, error)
}

// Service owns the append-only cash ledger.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Record appends one transaction.
func (s *Service) Record(ctx context.Context, input RecordInput) (Transaction, error) {
	if !input.Kind.Valid() {
		return Transaction{}, ErrUnknownKind
	}
	if !input.Category.Valid() {
		return Transaction{}, ErrUnknownCategory
	}
	if !input.Amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	refKind := input.RefKind
	if refKind == "" {
		refKind = RefNone
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	txn := Transaction{
		Kind:        input.Kind,
		Category:    input.Category,
		Amount:      input.Amount,
		Description: input.Description,
		RefKind:     refKind,
		RefID:       input.RefID,
		ActorID:     input.ActorID,
		OccurredAt:  occurredAt,
		CreatedAt:   time.Now().UTC(),
	}
	id, err := s.repo.Insert(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}
	txn.ID = id
	return txn, nil
}

// List returns transactions matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, 0, ErrUnknownKind
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, 0, ErrUnknownCategory
	}
	return s.repo.List(ctx, filter)
}

// Summarize totals income and expense over a period. A zero "to" means now.
func (s *Service) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	return s.repo.Summarize(ctx, from, to)
}
