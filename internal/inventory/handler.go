package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tokoberas/tokoberas/internal/observability"
	"github.com/tokoberas/tokoberas/internal/platform/httpx"
	"github.com/tokoberas/tokoberas/internal/rbac"
	"github.com/tokoberas/tokoberas/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
	metrics  *observability.Metrics
}

// NewHandler constructs the inventory handler. metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac, metrics: metrics}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("inventory.view"))
		r.Get("/movements", h.listMovements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("inventory.edit"))
		r.Post("/movements", h.recordMovement)
	})
}

type movementRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Type      string  `json:"type" validate:"required"`
	Qty       float64 `json:"qty" validate:"required"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Note      string  `json:"note" validate:"max=500"`
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movementType := MovementType(req.Type)
	if !movementType.Valid() || movementType == MovementInitial || movementType == MovementOut {
		// out movements only originate from sales, initial from product creation
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unsupported movement type")
		return
	}

	movement, err := h.service.RecordMovement(r.Context(), MovementInput{
		ProductID: req.ProductID,
		Type:      movementType,
		Qty:       req.Qty,
		UnitPrice: req.UnitPrice,
		Note:      req.Note,
		ActorID:   actorFromSession(r),
		Ref:       MovementRef{Kind: RefAdjustment},
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id wajib diisi")
		return
	}
	filter := MovementFilter{ProductID: productID, Type: MovementType(q.Get("type"))}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}

	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		if h.metrics != nil {
			h.metrics.CountStockRejection()
		}
		httpx.Problem(w, http.StatusUnprocessableEntity, "Stok Tidak Mencukupi", insufficient.Error())
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrUnknownMovementType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func actorFromSession(r *http.Request) int64 {
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
