package audit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tokoberas/tokoberas/internal/platform/httpx"
	"github.com/tokoberas/tokoberas/internal/rbac"
)

const (
	defaultWindow = 7 * 24 * time.Hour
	maxWindow     = 90 * 24 * time.Hour
)

// Handler exposes the audit timeline over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("users.view"))
		r.Get("/audit", h.timeline)
		r.Get("/audit/export.csv", h.exportCSV)
	})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filter)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("audit timeline failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "gagal memuat audit timeline")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	data, err := h.service.ExportCSV(r.Context(), filter)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("audit export failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "gagal mengekspor audit timeline")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// parseFilter reads query params and applies the default window. The
// window is capped so exports stay bounded even without a from date.
func (h *Handler) parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}

	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		return Filter{}, errors.New("parameter from tidak valid")
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		return Filter{}, errors.New("parameter to tidak valid")
	}

	now := h.now().UTC()
	if filter.To.IsZero() {
		filter.To = now
	}
	if filter.From.IsZero() {
		filter.From = filter.To.Add(-defaultWindow)
	}
	if filter.To.Sub(filter.From) > maxWindow {
		filter.From = filter.To.Add(-maxWindow)
	}

	if raw := q.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return Filter{}, errors.New("parameter actor_id tidak valid")
		}
		filter.ActorID = id
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page <= 0 {
			return Filter{}, errors.New("parameter page tidak valid")
		}
		filter.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Filter{}, errors.New("parameter page_size tidak valid")
		}
		filter.PageSize = size
	}
	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
