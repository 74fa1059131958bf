package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokoberas/tokoberas/internal/platform/db"
)

// Repository persists payroll records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository groups the writes of one payroll mutation under the record's
// row lock.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Payroll, error)
	Update(ctx context.Context, p Payroll) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("payroll repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const payrollColumns = `id, user_id, employee_name, period, base_salary, allowance, deduction, net_amount, status, note, created_by, approved_by, paid_by, approved_at, paid_at, created_at, updated_at`

// Insert creates a draft. A unique index on (user_id, period) keeps one
// record per employee per month.
func (r *Repository) Insert(ctx context.Context, p Payroll) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO payrolls (user_id, employee_name, period, base_salary, allowance, deduction, net_amount, status, note, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11) RETURNING id`,
		p.UserID, p.EmployeeName, p.Period, p.BaseSalary, p.Allowance, p.Deduction, p.NetAmount,
		string(p.Status), p.Note, p.CreatedBy, p.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicatePeriod
		}
		return 0, err
	}
	return id, nil
}

// Get returns one payroll record.
func (r *Repository) Get(ctx context.Context, id int64) (Payroll, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+payrollColumns+` FROM payrolls WHERE id=$1`, id)
	p, err := scanPayroll(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payroll{}, ErrNotFound
		}
		return Payroll{}, err
	}
	return p, nil
}

// List returns payroll records matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Payroll, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	if filter.Period != "" {
		args = append(args, filter.Period)
		conds = append(conds, fmt.Sprintf("period=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payrolls WHERE `+where, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM payrolls WHERE %s ORDER BY period DESC, employee_name ASC LIMIT $%d OFFSET $%d`,
		payrollColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	records := []Payroll{}
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Payroll, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+payrollColumns+` FROM payrolls WHERE id=$1 FOR UPDATE`, id)
	p, err := scanPayroll(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payroll{}, ErrNotFound
		}
		return Payroll{}, err
	}
	return p, nil
}

func (r *txRepository) Update(ctx context.Context, p Payroll) error {
	var approvedBy, paidBy any
	if p.ApprovedBy != 0 {
		approvedBy = p.ApprovedBy
	}
	if p.PaidBy != 0 {
		paidBy = p.PaidBy
	}
	tag, err := r.tx.Exec(ctx, `UPDATE payrolls SET base_salary=$2, allowance=$3, deduction=$4, net_amount=$5, status=$6, note=$7, approved_by=$8, paid_by=$9, approved_at=$10, paid_at=$11, updated_at=NOW()
WHERE id=$1`,
		p.ID, p.BaseSalary, p.Allowance, p.Deduction, p.NetAmount, string(p.Status), p.Note,
		approvedBy, paidBy, p.ApprovedAt, p.PaidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPayroll(row pgx.Row) (Payroll, error) {
	var (
		p          Payroll
		status     string
		approvedBy *int64
		paidBy     *int64
		approvedAt *time.Time
		paidAt     *time.Time
	)
	err := row.Scan(&p.ID, &p.UserID, &p.EmployeeName, &p.Period, &p.BaseSalary, &p.Allowance, &p.Deduction,
		&p.NetAmount, &status, &p.Note, &p.CreatedBy, &approvedBy, &paidBy, &approvedAt, &paidAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Payroll{}, err
	}
	p.Status = Status(status)
	if approvedBy != nil {
		p.ApprovedBy = *approvedBy
	}
	if paidBy != nil {
		p.PaidBy = *paidBy
	}
	p.ApprovedAt = approvedAt
	p.PaidAt = paidAt
	return p, nil
}
