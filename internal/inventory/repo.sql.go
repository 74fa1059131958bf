package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokoberas/tokoberas/internal/platform/db"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. The
// product lock from GetProductForUpdate is held until the surrounding
// transaction commits, which serializes concurrent movements per product.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, productID int64) (Product, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	UpdateProductStock(ctx context.Context, productID int64, stock float64) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an existing transaction so other modules (e.g. sale
// completion) can post movements atomically with their own writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListMovements returns ledger entries for a product in creation order.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, actor_id, movement_type, qty, stock_before, stock_after, unit_cost, unit_price, note, ref_kind, ref_id, meta, created_at
FROM stock_movements
WHERE product_id=$1
  AND ($2='' OR movement_type=$2)
  AND created_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY created_at ASC, id ASC
LIMIT $5`, filter.ProductID, string(filter.Type), nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `SELECT id, name, stock, cost_price, sell_price FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Name, &p.Stock, &p.CostPrice, &p.SellPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	metaJSON, err := json.Marshal(m.Meta)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, actor_id, movement_type, qty, stock_before, stock_after, unit_cost, unit_price, note, ref_kind, ref_id, meta, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		m.ProductID, nullInt(m.ActorID), string(m.Type), m.Qty, m.StockBefore, m.StockAfter, m.UnitCost, m.UnitPrice, m.Note,
		string(m.Ref.Kind), nullInt(m.Ref.ID), metaJSON, m.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateProductStock(ctx context.Context, productID int64, stock float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=NOW() WHERE id=$1`, productID, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovement(row rowScanner) (Movement, error) {
	var (
		m        Movement
		actorID  *int64
		refKind  string
		refID    *int64
		metaJSON []byte
	)
	err := row.Scan(&m.ID, &m.ProductID, &actorID, &m.Type, &m.Qty, &m.StockBefore, &m.StockAfter,
		&m.UnitCost, &m.UnitPrice, &m.Note, &refKind, &refID, &metaJSON, &m.CreatedAt)
	if err != nil {
		return Movement{}, err
	}
	if actorID != nil {
		m.ActorID = *actorID
	}
	m.Ref.Kind = RefKind(refKind)
	if refID != nil {
		m.Ref.ID = *refID
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &m.Meta)
	}
	return m, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
