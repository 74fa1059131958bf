package catalog

import (
	"errors"
	"time"
)

// Product represents a product (beras) in the shop catalog. Stock is a
// derived aggregate: outside of creation it only changes together with a
// stock ledger entry.
type Product struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	CostPrice float64   `json:"cost_price"`
	SellPrice float64   `json:"sell_price"`
	Stock     float64   `json:"stock"`
	MinStock  float64   `json:"min_stock"`
	Unit      string    `json:"unit"`
	IsActive  bool      `json:"is_active"`
	CreatedBy int64     `json:"created_by"`
	UpdatedBy int64     `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProductInput carries the fields accepted on creation. InitialStock
// seeds the ledger when nonzero.
type CreateProductInput struct {
	Code         string
	Name         string
	Category     string
	CostPrice    float64
	SellPrice    float64
	InitialStock float64
	MinStock     float64
	Unit         string
	ActorID      int64
}

// UpdateProductInput carries mutable fields. Stock is deliberately absent:
// stock changes go through the ledger.
type UpdateProductInput struct {
	Name      *string
	Category  *string
	CostPrice *float64
	SellPrice *float64
	MinStock  *float64
	Unit      *string
	IsActive  *bool
	ActorID   int64
}

// CreateResult reports a created product plus an optional warning when the
// best-effort initial stock seeding failed. The product itself is committed
// either way.
type CreateResult struct {
	Product      Product `json:"product"`
	StockWarning string  `json:"stock_warning,omitempty"`
}

// ListFilter filters catalog listings.
type ListFilter struct {
	Search   string
	Category string
	IsActive *bool
	LowStock bool
	Page     int
	PerPage  int
}

var (
	// ErrNotFound indicates the product does not exist.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrDuplicateCode indicates the product code is taken.
	ErrDuplicateCode = errors.New("catalog: product code already exists")
	// ErrProductInUse indicates the product is referenced by sales and can
	// only be deactivated.
	ErrProductInUse = errors.New("catalog: product has sales history, deactivate instead")
)
