package finance

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tokoberas/tokoberas/internal/platform/httpx"
	"github.com/tokoberas/tokoberas/internal/rbac"
	"github.com/tokoberas/tokoberas/internal/shared"
)

// Handler wires HTTP endpoints for the cash ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs the finance handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("finance.view"))
		r.Get("/finance/transactions", h.list)
		r.Get("/finance/summary", h.summary)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("finance.edit"))
		r.Post("/finance/transactions", h.record)
	})
}

type recordRequest struct {
	Kind        string  `json:"kind" validate:"required,oneof=income expense"`
	Category    string  `json:"category" validate:"required,oneof=sales payroll purchase adjustment other"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"required,max=500"`
	OccurredAt  string  `json:"occurred_at" validate:"omitempty"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := RecordInput{
		Kind:        Kind(req.Kind),
		Category:    Category(req.Category),
		Amount:      decimal.NewFromFloat(req.Amount),
		Description: req.Description,
		ActorID:     actorID(r),
	}
	if req.OccurredAt != "" {
		occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "occurred_at must be RFC3339")
			return
		}
		input.OccurredAt = occurredAt
	}
	txn, err := h.service.Record(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Kind:     Kind(q.Get("kind")),
		Category: Category(q.Get("category")),
	}
	if from := q.Get("from"); from != "" {
		filter.From, _ = time.Parse(time.RFC3339, from)
	}
	if to := q.Get("to"); to != "" {
		filter.To, _ = time.Parse(time.RFC3339, to)
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	txns, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"pagination":   shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from, to time.Time
	if v := q.Get("from"); v != "" {
		from, _ = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("to"); v != "" {
		to, _ = time.Parse(time.RFC3339, v)
	}
	if from.IsZero() {
		// default to the current month
		now := time.Now().UTC()
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	summary, err := h.service.Summarize(r.Context(), from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrUnknownKind), errors.Is(err, ErrUnknownCategory):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateRef):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("finance request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func actorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
