package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists report requests and rendered PDFs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `id, kind, period_start, period_end, status, requested_by, reviewed_by, review_note, error, reviewed_at, rendered_at, created_at, updated_at`

// Insert creates a pending report request.
func (r *Repository) Insert(ctx context.Context, rep Report) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO reports (kind, period_start, period_end, status, requested_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6) RETURNING id`,
		string(rep.Kind), rep.PeriodStart, rep.PeriodEnd, string(rep.Status), rep.RequestedBy, rep.CreatedAt).Scan(&id)
	return id, err
}

// Get returns one report without its PDF payload.
func (r *Repository) Get(ctx context.Context, id int64) (Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=$1`, id)
	return scanReport(row)
}

// List returns reports matching the filter, newest first, plus the total
// count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Report, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conds = append(conds, fmt.Sprintf("kind=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reports WHERE `+where, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		reportColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	reports := []Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// Review records an approval or rejection of a pending report. It returns
// ErrNotPending when the report was already reviewed.
func (r *Repository) Review(ctx context.Context, id int64, to Status, reviewerID int64, note string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reports SET status=$2, reviewed_by=$3, review_note=$4, reviewed_at=NOW(), updated_at=NOW()
WHERE id=$1 AND status='pending'`, id, string(to), reviewerID, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

// SavePDF stores the rendered document and marks the report ready.
func (r *Repository) SavePDF(ctx context.Context, id int64, pdf []byte) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reports SET pdf=$2, status='ready', error='', rendered_at=NOW(), updated_at=NOW()
WHERE id=$1 AND status='approved'`, id, pdf)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotApproved
	}
	return nil
}

// MarkFailed records a rendering failure.
func (r *Repository) MarkFailed(ctx context.Context, id int64, cause string) error {
	_, err := r.pool.Exec(ctx, `UPDATE reports SET status='failed', error=$2, updated_at=NOW() WHERE id=$1`, id, cause)
	return err
}

// GetPDF returns the rendered document.
func (r *Repository) GetPDF(ctx context.Context, id int64) ([]byte, error) {
	var pdf []byte
	err := r.pool.QueryRow(ctx, `SELECT pdf FROM reports WHERE id=$1 AND status='ready'`, id).Scan(&pdf)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.Get(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrNotReady
		}
		return nil, err
	}
	return pdf, nil
}

func scanReport(row pgx.Row) (Report, error) {
	var (
		rep        Report
		kind       string
		status     string
		reviewedBy *int64
		reviewedAt *time.Time
		renderedAt *time.Time
	)
	err := row.Scan(&rep.ID, &kind, &rep.PeriodStart, &rep.PeriodEnd, &status, &rep.RequestedBy,
		&reviewedBy, &rep.ReviewNote, &rep.Error, &reviewedAt, &renderedAt, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	rep.Kind = Kind(kind)
	rep.Status = Status(status)
	if reviewedBy != nil {
		rep.ReviewedBy = *reviewedBy
	}
	rep.ReviewedAt = reviewedAt
	rep.RenderedAt = renderedAt
	return rep, nil
}
