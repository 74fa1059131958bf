package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the audit_logs table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Repository backed by pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `a.id, a.occurred_at, a.actor_id, COALESCE(u.full_name, ''), a.action, a.entity, a.entity_id, a.meta`

// List returns up to limit entries matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter, limit, offset int) ([]Entry, error) {
	conds := []string{"1=1"}
	args := []any{}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("a.occurred_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("a.occurred_at <= $%d", len(args)))
	}
	if filter.ActorID > 0 {
		args = append(args, filter.ActorID)
		conds = append(conds, fmt.Sprintf("a.actor_id = $%d", len(args)))
	}
	if entity := strings.TrimSpace(filter.Entity); entity != "" {
		args = append(args, entity)
		conds = append(conds, fmt.Sprintf("a.entity = $%d", len(args)))
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		args = append(args, action)
		conds = append(conds, fmt.Sprintf("a.action = $%d", len(args)))
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id
WHERE %s
ORDER BY a.occurred_at DESC, a.id DESC
LIMIT $%d OFFSET $%d`, entryColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var metaRaw []byte
		var at time.Time
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &e.ActorName, &e.Action, &e.Entity, &e.EntityID, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.At = at
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &e.Meta)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
