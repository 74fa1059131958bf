package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tokoberas/tokoberas/internal/inventory"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateProductInput) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetByCode(ctx context.Context, code string) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Update(ctx context.Context, id int64, input UpdateProductInput) (Product, error)
	HasSales(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
	Deactivate(ctx context.Context, id int64, actorID int64) error
}

// StockSeeder writes the initial ledger entry for a new product.
type StockSeeder interface {
	RecordInitialStock(ctx context.Context, productID int64, createdBy int64, note string) (*inventory.Movement, error)
}

// Service owns catalog business rules.
type Service struct {
	repo   RepositoryPort
	seeder StockSeeder
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, seeder StockSeeder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, seeder: seeder, logger: logger}
}

// Create inserts the product and seeds its initial stock ledger entry.
// Seeding is best-effort: a failure never rolls back the product, it is
// logged and reported in the result so callers and tests can see it.
func (s *Service) Create(ctx context.Context, input CreateProductInput) (CreateResult, error) {
	if err := validateCreate(input); err != nil {
		return CreateResult{}, err
	}

	product, err := s.repo.Create(ctx, input)
	if err != nil {
		return CreateResult{}, err
	}

	result := CreateResult{Product: product}
	if input.InitialStock > 0 && s.seeder != nil {
		note := fmt.Sprintf("Stok awal %s", product.Name)
		if _, err := s.seeder.RecordInitialStock(ctx, product.ID, input.ActorID, note); err != nil {
			s.logger.Error("seed initial stock",
				slog.Int64("product_id", product.ID),
				slog.String("code", product.Code),
				slog.Float64("initial_stock", input.InitialStock),
				slog.Any("error", err))
			result.StockWarning = fmt.Sprintf("stok awal tercatat di produk tetapi gagal masuk buku stok: %v", err)
		}
	}
	return result, nil
}

// Get fetches one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns products matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.repo.List(ctx, filter)
}

// LowStock lists active products at or below their minimum stock threshold.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	active := true
	products, _, err := s.repo.List(ctx, ListFilter{IsActive: &active, LowStock: true, PerPage: 500})
	return products, err
}

// Update writes mutable product fields.
func (s *Service) Update(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	if err := validateUpdate(input); err != nil {
		return Product{}, err
	}
	return s.repo.Update(ctx, id, input)
}

// Delete removes a product, or deactivates it when sales reference it.
// Returns ErrProductInUse after deactivating so the caller can tell the
// user what actually happened.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	inUse, err := s.repo.HasSales(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		if err := s.repo.Deactivate(ctx, id, actorID); err != nil {
			return err
		}
		return ErrProductInUse
	}
	return s.repo.Delete(ctx, id)
}

// IsInUse reports whether err is the deactivate-instead signal.
func IsInUse(err error) bool {
	return errors.Is(err, ErrProductInUse)
}
