package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tokoberas/tokoberas/internal/platform/httpx"
	"github.com/tokoberas/tokoberas/internal/rbac"
	"github.com/tokoberas/tokoberas/internal/shared"
)

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("catalog.view"))
		r.Get("/products", h.list)
		r.Get("/products/low-stock", h.lowStock)
		r.Get("/products/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("catalog.edit"))
		r.Post("/products", h.create)
		r.Put("/products/{id}", h.update)
		r.Delete("/products/{id}", h.delete)
	})
}

type createProductRequest struct {
	Code         string  `json:"code" validate:"required,max=50"`
	Name         string  `json:"name" validate:"required,max=200"`
	Category     string  `json:"category" validate:"max=100"`
	CostPrice    float64 `json:"cost_price" validate:"gte=0"`
	SellPrice    float64 `json:"sell_price" validate:"gte=0"`
	InitialStock float64 `json:"initial_stock" validate:"gte=0"`
	MinStock     float64 `json:"min_stock" validate:"gte=0"`
	Unit         string  `json:"unit" validate:"required,max=20"`
}

type updateProductRequest struct {
	Name      *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Category  *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	CostPrice *float64 `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	SellPrice *float64 `json:"sell_price,omitempty" validate:"omitempty,gte=0"`
	MinStock  *float64 `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
	Unit      *string  `json:"unit,omitempty" validate:"omitempty,max=20"`
	IsActive  *bool    `json:"is_active,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.Create(r.Context(), CreateProductInput{
		Code:         req.Code,
		Name:         req.Name,
		Category:     req.Category,
		CostPrice:    req.CostPrice,
		SellPrice:    req.SellPrice,
		InitialStock: req.InitialStock,
		MinStock:     req.MinStock,
		Unit:         req.Unit,
		ActorID:      actorID(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
	}
	if active := q.Get("is_active"); active != "" {
		v := active == "true" || active == "1"
		filter.IsActive = &v
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	products, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products":   products,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStock(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	var req updateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	product, err := h.service.Update(r.Context(), id, UpdateProductInput{
		Name:      req.Name,
		Category:  req.Category,
		CostPrice: req.CostPrice,
		SellPrice: req.SellPrice,
		MinStock:  req.MinStock,
		Unit:      req.Unit,
		IsActive:  req.IsActive,
		ActorID:   actorID(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	err = h.service.Delete(r.Context(), id, actorID(r))
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
	case IsInUse(err):
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": false, "deactivated": true})
	default:
		h.respondError(w, err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
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
