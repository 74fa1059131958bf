package payroll

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tokoberas/tokoberas/internal/platform/httpx"
	"github.com/tokoberas/tokoberas/internal/rbac"
	"github.com/tokoberas/tokoberas/internal/shared"
)

// Handler wires HTTP endpoints for payroll.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs the payroll handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("payroll.view"))
		r.Get("/payrolls", h.list)
		r.Get("/payrolls/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("payroll.edit"))
		r.Post("/payrolls", h.create)
		r.Put("/payrolls/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("payroll.approve"))
		r.Post("/payrolls/{id}/approve", h.approve)
		r.Post("/payrolls/{id}/pay", h.pay)
	})
}

type createPayrollRequest struct {
	UserID       int64   `json:"user_id" validate:"required,gt=0"`
	EmployeeName string  `json:"employee_name" validate:"required,max=200"`
	Period       string  `json:"period" validate:"required"`
	BaseSalary   float64 `json:"base_salary" validate:"gte=0"`
	Allowance    float64 `json:"allowance" validate:"gte=0"`
	Deduction    float64 `json:"deduction" validate:"gte=0"`
	Note         string  `json:"note" validate:"max=500"`
}

type updatePayrollRequest struct {
	BaseSalary *float64 `json:"base_salary,omitempty" validate:"omitempty,gte=0"`
	Allowance  *float64 `json:"allowance,omitempty" validate:"omitempty,gte=0"`
	Deduction  *float64 `json:"deduction,omitempty" validate:"omitempty,gte=0"`
	Note       *string  `json:"note,omitempty" validate:"omitempty,max=500"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPayrollRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.Create(r.Context(), CreateInput{
		UserID:       req.UserID,
		EmployeeName: req.EmployeeName,
		Period:       req.Period,
		BaseSalary:   decimal.NewFromFloat(req.BaseSalary),
		Allowance:    decimal.NewFromFloat(req.Allowance),
		Deduction:    decimal.NewFromFloat(req.Deduction),
		Note:         req.Note,
		ActorID:      actorID(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := payrollID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Period: q.Get("period"),
		Status: Status(q.Get("status")),
	}
	filter.UserID, _ = strconv.ParseInt(q.Get("user_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	records, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"payrolls":   records,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := payrollID(w, r)
	if !ok {
		return
	}
	var req updatePayrollRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := UpdateInput{Note: req.Note, ActorID: actorID(r)}
	if req.BaseSalary != nil {
		v := decimal.NewFromFloat(*req.BaseSalary)
		input.BaseSalary = &v
	}
	if req.Allowance != nil {
		v := decimal.NewFromFloat(*req.Allowance)
		input.Allowance = &v
	}
	if req.Deduction != nil {
		v := decimal.NewFromFloat(*req.Deduction)
		input.Deduction = &v
	}
	p, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := payrollID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Approve(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, ok := payrollID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Pay(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotDraft), errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidPeriod), errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicatePeriod):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("payroll request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func payrollID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payroll id")
		return 0, false
	}
	return id, true
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
