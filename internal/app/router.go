package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/kuma-mall/kuma-admin/internal/audit/http"
	"github.com/kuma-mall/kuma-admin/internal/auth"
	"github.com/kuma-mall/kuma-admin/internal/categories"
	"github.com/kuma-mall/kuma-admin/internal/flashsale"
	"github.com/kuma-mall/kuma-admin/internal/observability"
	"github.com/kuma-mall/kuma-admin/internal/platform/httpx"
	"github.com/kuma-mall/kuma-admin/internal/products"
	"github.com/kuma-mall/kuma-admin/internal/shared"
	"github.com/kuma-mall/kuma-admin/internal/users"
	"github.com/kuma-mall/kuma-admin/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	AuthHandler       *auth.Handler
	FlashSaleHandler  *flashsale.Handler
	ProductsHandler   *products.Handler
	CategoriesHandler *categories.Handler
	UsersHandler      *users.Handler
	JobHandler        *jobs.Handler
	AuditHandler      *audithttp.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with the admin API defaults.
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

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, r, httpx.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	// Cron triggers authenticate by API key, everything else needs a session.
	if params.FlashSaleHandler != nil {
		r.Route("/flash-sales", func(r chi.Router) {
			params.FlashSaleHandler.MountCronRoutes(r)
			r.Group(func(r chi.Router) {
				requireAdmin(r, params.AuthHandler)
				params.FlashSaleHandler.MountRoutes(r)
			})
		})
	}

	r.Group(func(r chi.Router) {
		requireAdmin(r, params.AuthHandler)
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.CategoriesHandler != nil {
			r.Route("/categories", params.CategoriesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit-logs", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

func requireAdmin(r chi.Router, authHandler *auth.Handler) {
	r.Use(auth.RequireSession)
	if authHandler != nil {
		r.Use(authHandler.RequireActiveUser)
	}
}
