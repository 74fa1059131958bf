package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokoberas/tokoberas/internal/inventory"
	"github.com/tokoberas/tokoberas/internal/platform/db"
)

// Repository persists sales and their lines in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository groups the writes of one sale mutation. GetSaleForUpdate locks
// the sale row for the remainder of the transaction, which serializes
// concurrent edits and status changes on the same sale.
type TxRepository interface {
	NextSaleNumber(ctx context.Context) (string, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error)
	GetLine(ctx context.Context, saleID, lineID int64) (SaleLine, error)
	InsertLine(ctx context.Context, line SaleLine) (int64, error)
	UpdateLineQty(ctx context.Context, lineID int64, qty, unitPrice float64) error
	UpdateLineRollup(ctx context.Context, line SaleLine) error
	DeleteLine(ctx context.Context, lineID int64) error
	ListLines(ctx context.Context, saleID int64) ([]SaleLine, error)
	UpdateSaleTotals(ctx context.Context, saleID int64, total, totalCost, totalProfit float64) error
	UpdateSaleStatus(ctx context.Context, sale Sale) error
	GetProductBasis(ctx context.Context, productID int64) (ProductBasis, bool, error)
	SaleExists(ctx context.Context, saleID int64) (bool, error)
	Inventory() inventory.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const saleColumns = `id, number, customer_name, customer_phone, channel, status, payment_method, total, total_cost, total_profit, note, created_by, paid_at, completed_at, created_at, updated_at`

// Get returns one sale with its lines.
func (r *Repository) Get(ctx context.Context, saleID int64) (Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, saleID)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, err
	}
	lines, err := listLines(ctx, r.pool, saleID)
	if err != nil {
		return Sale{}, err
	}
	sale.Lines = lines
	return sale, nil
}

// List returns sales matching the filter, newest first, plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Channel != "" {
		args = append(args, string(filter.Channel))
		conds = append(conds, fmt.Sprintf("channel=$%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE `+where, args...).Scan(&total); err != nil {
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
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM sales WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		saleColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	sales := []Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

func (r *txRepository) NextSaleNumber(ctx context.Context) (string, error) {
	var number string
	err := r.tx.QueryRow(ctx,
		`SELECT 'TRX-' || to_char(NOW(), 'YYYYMMDD') || '-' || lpad(nextval('sale_number_seq')::text, 4, '0')`).
		Scan(&number)
	return number, err
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (number, customer_name, customer_phone, channel, status, payment_method, total, total_cost, total_profit, note, created_by, paid_at, completed_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14) RETURNING id`,
		sale.Number, sale.CustomerName, sale.CustomerPhone, string(sale.Channel), string(sale.Status), string(sale.PaymentMethod),
		sale.Total, sale.TotalCost, sale.TotalProfit, sale.Note, sale.CreatedBy, sale.PaidAt, sale.CompletedAt, sale.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, saleID)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, err
	}
	return sale, nil
}

const lineColumns = `id, sale_id, product_id, product_name, qty, unit_price, subtotal, cost_basis, subtotal_cost, profit, created_at, updated_at`

func (r *txRepository) GetLine(ctx context.Context, saleID, lineID int64) (SaleLine, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+lineColumns+` FROM sale_lines WHERE id=$1 AND sale_id=$2`, lineID, saleID)
	line, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SaleLine{}, ErrLineNotFound
		}
		return SaleLine{}, err
	}
	return line, nil
}

func (r *txRepository) InsertLine(ctx context.Context, line SaleLine) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_lines (sale_id, product_id, product_name, qty, unit_price, subtotal, cost_basis, subtotal_cost, profit, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10) RETURNING id`,
		line.SaleID, line.ProductID, line.ProductName, line.Qty, line.UnitPrice, line.Subtotal,
		line.CostBasis, line.SubtotalCost, line.Profit, line.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateLineQty(ctx context.Context, lineID int64, qty, unitPrice float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sale_lines SET qty=$2, unit_price=$3, updated_at=NOW() WHERE id=$1`, lineID, qty, unitPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *txRepository) UpdateLineRollup(ctx context.Context, line SaleLine) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sale_lines SET product_name=$2, subtotal=$3, cost_basis=$4, subtotal_cost=$5, profit=$6, updated_at=NOW() WHERE id=$1`,
		line.ID, line.ProductName, line.Subtotal, line.CostBasis, line.SubtotalCost, line.Profit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *txRepository) DeleteLine(ctx context.Context, lineID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM sale_lines WHERE id=$1`, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *txRepository) ListLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	return listLines(ctx, r.tx, saleID)
}

func (r *txRepository) UpdateSaleTotals(ctx context.Context, saleID int64, total, totalCost, totalProfit float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET total=$2, total_cost=$3, total_profit=$4, updated_at=NOW() WHERE id=$1`,
		saleID, total, totalCost, totalProfit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateSaleStatus(ctx context.Context, sale Sale) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET status=$2, paid_at=$3, completed_at=$4, updated_at=NOW() WHERE id=$1`,
		sale.ID, string(sale.Status), sale.PaidAt, sale.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) GetProductBasis(ctx context.Context, productID int64) (ProductBasis, bool, error) {
	var p ProductBasis
	err := r.tx.QueryRow(ctx, `SELECT id, name, cost_price, sell_price, stock, is_active FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.Name, &p.CostPrice, &p.SellPrice, &p.Stock, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductBasis{}, false, nil
		}
		return ProductBasis{}, false, err
	}
	return p, true, nil
}

func (r *txRepository) SaleExists(ctx context.Context, saleID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id=$1)`, saleID).Scan(&exists)
	return exists, err
}

// Inventory adapts the running transaction for stock movements, so sale
// completion deducts stock atomically with the status change.
func (r *txRepository) Inventory() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listLines(ctx context.Context, q querier, saleID int64) ([]SaleLine, error) {
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM sale_lines WHERE sale_id=$1 ORDER BY id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []SaleLine{}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (Sale, error) {
	var (
		sale        Sale
		channel     string
		status      string
		payment     string
		paidAt      *time.Time
		completedAt *time.Time
	)
	err := row.Scan(&sale.ID, &sale.Number, &sale.CustomerName, &sale.CustomerPhone, &channel, &status, &payment,
		&sale.Total, &sale.TotalCost, &sale.TotalProfit, &sale.Note, &sale.CreatedBy, &paidAt, &completedAt,
		&sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return Sale{}, err
	}
	sale.Channel = SaleChannel(channel)
	sale.Status = SaleStatus(status)
	sale.PaymentMethod = PaymentMethod(payment)
	sale.PaidAt = paidAt
	sale.CompletedAt = completedAt
	return sale, nil
}

func scanLine(row rowScanner) (SaleLine, error) {
	var line SaleLine
	err := row.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.ProductName, &line.Qty, &line.UnitPrice,
		&line.Subtotal, &line.CostBasis, &line.SubtotalCost, &line.Profit, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return SaleLine{}, err
	}
	return line, nil
}
