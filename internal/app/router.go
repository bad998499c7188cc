package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openshelf/openshelf/internal/fines"
	"github.com/openshelf/openshelf/internal/inventory"
	"github.com/openshelf/openshelf/internal/loans"
	"github.com/openshelf/openshelf/internal/observability"
	"github.com/openshelf/openshelf/internal/reporting"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	LoansHandler     *loans.Handler
	FinesHandler     *fines.Handler
	CopiesHandler    *inventory.Handler
	ReportingHandler *reporting.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with OpenShelf defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/loans", params.LoansHandler.MountRoutes)
		r.Route("/people", params.LoansHandler.MountPeopleRoutes)
		r.Route("/fines", params.FinesHandler.MountRoutes)
		r.Route("/copies", params.CopiesHandler.MountRoutes)
		r.Route("/catalog-items", params.CopiesHandler.MountCatalogRoutes)
		r.Route("/reports", params.ReportingHandler.MountRoutes)
	})

	return r
}
