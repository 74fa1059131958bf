package sales

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tokoberas/tokoberas/internal/inventory"
	"github.com/tokoberas/tokoberas/internal/observability"
	"github.com/tokoberas/tokoberas/internal/platform/httpx"
	"github.com/tokoberas/tokoberas/internal/rbac"
	"github.com/tokoberas/tokoberas/internal/shared"
)

// IdempotencyGuard rejects duplicate submissions keyed by client token.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Handler wires HTTP endpoints for sales.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
	metrics  *observability.Metrics
	idem     IdempotencyGuard
}

// NewHandler constructs the sales handler. metrics and idem may be nil.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, metrics *observability.Metrics, idem IdempotencyGuard) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac, metrics: metrics, idem: idem}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("sales.view"))
		r.Get("/sales", h.list)
		r.Get("/sales/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("sales.edit"))
		r.Post("/sales", h.create)
		r.Post("/sales/{id}/lines", h.addLine)
		r.Put("/sales/{id}/lines/{lineID}", h.updateLine)
		r.Delete("/sales/{id}/lines/{lineID}", h.removeLine)
		r.Post("/sales/{id}/status", h.updateStatus)
	})
}

type createSaleRequest struct {
	CustomerName  string            `json:"customer_name" validate:"max=200"`
	CustomerPhone string            `json:"customer_phone" validate:"max=30"`
	Channel       string            `json:"channel" validate:"omitempty,oneof=store online"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash transfer qris debit"`
	Note          string            `json:"note" validate:"max=500"`
	Lines         []saleLineRequest `json:"lines" validate:"dive"`
}

type saleLineRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type updateLineRequest struct {
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid ready completed cancelled"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	// Cashier terminals retry on flaky connections. The key makes the
	// retry a no-op instead of a second sale.
	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, "sales"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "transaksi dengan kunci ini sudah diproses")
				return
			}
			h.respondError(w, err)
			return
		}
	}

	input := CreateSaleInput{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Channel:       SaleChannel(req.Channel),
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		Note:          req.Note,
		ActorID:       actorID(r),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}
	sale, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:  SaleStatus(q.Get("status")),
		Channel: SaleChannel(q.Get("channel")),
	}
	if from := q.Get("from"); from != "" {
		filter.From, _ = time.Parse(time.RFC3339, from)
	}
	if to := q.Get("to"); to != "" {
		filter.To, _ = time.Parse(time.RFC3339, to)
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	sales, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"sales":      sales,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}
	var req saleLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.service.AddLine(r.Context(), id, LineInput{
		ProductID: req.ProductID,
		Qty:       req.Qty,
		UnitPrice: req.UnitPrice,
	}, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	id, lineID, ok := saleLineIDs(w, r)
	if !ok {
		return
	}
	var req updateLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.service.UpdateLine(r.Context(), id, lineID, req.Qty, req.UnitPrice, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	id, lineID, ok := saleLineIDs(w, r)
	if !ok {
		return
	}
	sale, err := h.service.RemoveLine(r.Context(), id, lineID, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.service.UpdateStatus(r.Context(), id, SaleStatus(req.Status), actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotEditable), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrEmptySale):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidLine), errors.Is(err, ErrProductInactive):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case inventory.IsInsufficientStock(err):
		if h.metrics != nil {
			h.metrics.CountStockRejection()
		}
		httpx.Problem(w, http.StatusUnprocessableEntity, "Stok Tidak Mencukupi", err.Error())
	default:
		h.logger.Error("sales request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func saleLineIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return 0, 0, false
	}
	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid line id")
		return 0, 0, false
	}
	return id, lineID, true
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
