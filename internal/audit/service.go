package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	exportLimit     = 5000
)

// ErrInvalidRange is returned when the filter window is reversed.
var ErrInvalidRange = errors.New("audit: from must not be after to")

// RepositoryPort abstracts timeline storage.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter, limit, offset int) ([]Entry, error)
}

// Service serves the audit timeline.
type Service struct {
	repo RepositoryPort
}

// NewService returns a timeline service over repo.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit entries. The page size is clamped
// so a single request cannot drag the whole table over the wire.
func (s *Service) Timeline(ctx context.Context, filter Filter) (Result, error) {
	if err := validateRange(filter); err != nil {
		return Result{}, err
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	// Fetch one extra row to detect whether a next page exists.
	entries, err := s.repo.List(ctx, filter, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	return Result{
		Entries: entries,
		Paging:  Paging{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}

// ExportCSV renders the matching entries as CSV, capped at exportLimit rows.
func (s *Service) ExportCSV(ctx context.Context, filter Filter) ([]byte, error) {
	if err := validateRange(filter); err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, filter, exportLimit, 0)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"waktu", "aktor", "aksi", "entitas", "entitas_id", "meta"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		meta := ""
		if len(e.Meta) > 0 {
			raw, err := json.Marshal(e.Meta)
			if err != nil {
				return nil, err
			}
			meta = string(raw)
		}
		actor := e.ActorName
		if actor == "" {
			actor = strconv.FormatInt(e.ActorID, 10)
		}
		record := []string{
			e.At.Format(time.RFC3339),
			actor,
			e.Action,
			e.Entity,
			e.EntityID,
			meta,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func validateRange(filter Filter) error {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return ErrInvalidRange
	}
	return nil
}
