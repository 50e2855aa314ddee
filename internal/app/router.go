package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tallyhq/tally/internal/observability"
	projecthttp "github.com/tallyhq/tally/internal/projects/http"
	usagehttp "github.com/tallyhq/tally/internal/usage/http"
	"github.com/tallyhq/tally/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	UsageHandler    *usagehttp.Handler
	ProjectsHandler *projecthttp.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with tally defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		if params.UsageHandler != nil {
			params.UsageHandler.Mount(api)
		}
		if params.ProjectsHandler != nil {
			params.ProjectsHandler.Mount(api)
		}
		if params.JobsHandler != nil {
			params.JobsHandler.Mount(api)
		}
	})

	return r
}
