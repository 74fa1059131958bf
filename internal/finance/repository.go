package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists the cash ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const txnColumns = `id, kind, category, amount, description, ref_kind, ref_id, actor_id, occurred_at, created_at`

// Insert appends one transaction. A unique index on (category, ref_kind,
// ref_id) keeps one transaction per referenced document.
func (r *Repository) Insert(ctx context.Context, txn Transaction) (int64, error) {
	var refID any
	if txn.RefID != 0 {
		refID = txn.RefID
	}
	var actorID any
	if txn.ActorID != 0 {
		actorID = txn.ActorID
	}
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO financial_transactions (kind, category, amount, description, ref_kind, ref_id, actor_id, occurred_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		string(txn.Kind), string(txn.Category), txn.Amount, txn.Description, string(txn.RefKind), refID, actorID,
		txn.OccurredAt, txn.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateRef
		}
		return 0, err
	}
	return id, nil
}

// List returns transactions matching the filter, newest first, plus the total
// count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conds = append(conds, fmt.Sprintf("kind=$%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf("category=$%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM financial_transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM financial_transactions WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		txnColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	txns := []Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// Summarize totals income and expense over a period.
func (r *Repository) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	var incomeStr, expenseStr string
	err := r.pool.QueryRow(ctx, `SELECT
  COALESCE(SUM(amount) FILTER (WHERE kind='income'), 0)::text,
  COALESCE(SUM(amount) FILTER (WHERE kind='expense'), 0)::text
FROM financial_transactions
WHERE occurred_at BETWEEN $1 AND $2`, from, to).Scan(&incomeStr, &expenseStr)
	if err != nil {
		return Summary{}, err
	}
	income, err := decimal.NewFromString(incomeStr)
	if err != nil {
		return Summary{}, err
	}
	expense, err := decimal.NewFromString(expenseStr)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		From:    from,
		To:      to,
		Income:  income,
		Expense: expense,
		Net:     income.Sub(expense),
	}, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn     Transaction
		kind    string
		cat     string
		refKind string
		refID   *int64
		actorID *int64
	)
	err := row.Scan(&txn.ID, &kind, &cat, &txn.Amount, &txn.Description, &refKind, &refID, &actorID,
		&txn.OccurredAt, &txn.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	txn.Kind = Kind(kind)
	txn.Category = Category(cat)
	txn.RefKind = RefKind(refKind)
	if refID != nil {
		txn.RefID = *refID
	}
	if actorID != nil {
		txn.ActorID = *actorID
	}
	return txn, nil
}
