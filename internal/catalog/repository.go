package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, code, name, category, cost_price, sell_price, stock, min_stock, unit, is_active, created_by, updated_by, created_at, updated_at`

// Create inserts a product row, including its starting stock.
func (r *Repository) Create(ctx context.Context, input CreateProductInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (code, name, category, cost_price, sell_price, stock, min_stock, unit, is_active, created_by, updated_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE,$9,$9,NOW(),NOW())
RETURNING `+productColumns,
		input.Code, input.Name, input.Category, input.CostPrice, input.SellPrice, input.InitialStock, input.MinStock, input.Unit, nullInt(input.ActorID))
	product, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrDuplicateCode
		}
		return Product{}, err
	}
	return product, nil
}

// Get fetches one product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return product, nil
}

// GetByCode fetches one product by its unique code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code=$1`, code)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return product, nil
}

// List returns products matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR code ILIKE %s)", p, p))
	}
	if filter.Category != "" {
		conds = append(conds, "category = "+arg(filter.Category))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if filter.LowStock {
		conds = append(conds, "stock <= min_stock")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := `SELECT ` + productColumns + ` FROM products` + where +
		fmt.Sprintf(" ORDER BY name ASC LIMIT %s OFFSET %s", arg(perPage), arg((page-1)*perPage))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}
	return products, total, rows.Err()
}

// Update writes mutable fields. Stock is never touched here.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products SET
  name = COALESCE($2, name),
  category = COALESCE($3, category),
  cost_price = COALESCE($4, cost_price),
  sell_price = COALESCE($5, sell_price),
  min_stock = COALESCE($6, min_stock),
  unit = COALESCE($7, unit),
  is_active = COALESCE($8, is_active),
  updated_by = $9,
  updated_at = NOW()
WHERE id = $1
RETURNING `+productColumns,
		id, input.Name, input.Category, input.CostPrice, input.SellPrice, input.MinStock, input.Unit, input.IsActive, nullInt(input.ActorID))
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return product, nil
}

// HasSales reports whether any sale line references the product.
func (r *Repository) HasSales(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sale_lines WHERE product_id=$1)`, id).Scan(&exists)
	return exists, err
}

// Delete removes a product that has no sales history.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a product still referenced by sales.
func (r *Repository) Deactivate(ctx context.Context, id int64, actorID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET is_active=FALSE, updated_by=$2, updated_at=NOW() WHERE id=$1`, id, nullInt(actorID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p         Product
		createdBy *int64
		updatedBy *int64
	)
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.CostPrice, &p.SellPrice, &p.Stock, &p.MinStock,
		&p.Unit, &p.IsActive, &createdBy, &updatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	if createdBy != nil {
		p.CreatedBy = *createdBy
	}
	if updatedBy != nil {
		p.UpdatedBy = *updatedBy
	}
	return p, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
