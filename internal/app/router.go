package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tokoberas/tokoberas/internal/audit"
	"github.com/tokoberas/tokoberas/internal/auth"
	"github.com/tokoberas/tokoberas/internal/catalog"
	"github.com/tokoberas/tokoberas/internal/finance"
	"github.com/tokoberas/tokoberas/internal/inventory"
	"github.com/tokoberas/tokoberas/internal/observability"
	"github.com/tokoberas/tokoberas/internal/payroll"
	"github.com/tokoberas/tokoberas/internal/rbac"
	"github.com/tokoberas/tokoberas/internal/report"
	"github.com/tokoberas/tokoberas/internal/sales"
	"github.com/tokoberas/tokoberas/internal/shared"
	"github.com/tokoberas/tokoberas/internal/users"
	"github.com/tokoberas/tokoberas/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	CatalogHandler   *catalog.Handler
	InventoryHandler *inventory.Handler
	SalesHandler     *sales.Handler
	PayrollHandler   *payroll.Handler
	FinanceHandler   *finance.Handler
	ReportHandler    *report.Handler
	AuditHandler     *audit.Handler
	JobHandler       *jobs.Handler

	PermissionsHandler *rbac.PermissionsHandler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with the application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AuthHandler.MountRoutes(r)
	params.UsersHandler.MountRoutes(r)
	params.CatalogHandler.MountRoutes(r)
	params.InventoryHandler.MountRoutes(r)
	params.SalesHandler.MountRoutes(r)
	params.PayrollHandler.MountRoutes(r)
	params.FinanceHandler.MountRoutes(r)
	params.ReportHandler.MountRoutes(r)
	if params.AuditHandler != nil {
		params.AuditHandler.MountRoutes(r)
	}
	if params.PermissionsHandler != nil {
		params.PermissionsHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
