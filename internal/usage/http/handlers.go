// Package usagehttp serves usage reports over HTTP.
package usagehttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallyhq/tally/internal/observability"
	"github.com/tallyhq/tally/internal/platform/httpx"
	"github.com/tallyhq/tally/internal/projects"
	"github.com/tallyhq/tally/internal/usage"
)

// ReportBuilder is the report construction contract used by the handler.
type ReportBuilder interface {
	Build(ctx context.Context, params usage.Params) (usage.Report, error)
}

// Handler coordinates HTTP requests for usage reports.
type Handler struct {
	logger   *slog.Logger
	builder  ReportBuilder
	cache    *usage.Cache
	metrics  *observability.Metrics
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler constructs the usage HTTP handler.
func NewHandler(logger *slog.Logger, builder ReportBuilder, cache *usage.Cache, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		builder:  builder,
		cache:    cache,
		metrics:  metrics,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// Mount registers the usage routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/projects/{code}/usage", h.getUsage)
}

type usageQuery struct {
	Resource     string `validate:"omitempty,max=128"`
	Hierarchical bool
	Adjustments  bool
}

// reportResponse wraps the report with the timestamp its numbers were
// computed against.
type reportResponse struct {
	Project     string       `json:"project"`
	GeneratedAt time.Time    `json:"generated_at"`
	Report      usage.Report `json:"report"`
}

func (h *Handler) getUsage(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	query := usageQuery{
		Resource:     r.URL.Query().Get("resource"),
		Hierarchical: r.URL.Query().Get("hierarchical") == "true",
		Adjustments:  r.URL.Query().Get("adjustments") == "true",
	}
	if err := h.validate.Struct(query); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	// One timestamp governs the whole build; it is never re-derived below.
	now := h.now().UTC()
	params := usage.Params{
		ProjectCode:        code,
		Resource:           query.Resource,
		IncludeAdjustments: query.Adjustments,
		Hierarchical:       query.Hierarchical,
		Now:                now,
	}

	start := time.Now()
	key, err := h.cache.BuildKey(r.Context(), usage.ReportKey(params)...)
	if err != nil {
		h.logger.Warn("usage cache key", slog.Any("error", err))
	}

	var report usage.Report
	if key != "" && err == nil {
		err = h.cache.FetchJSON(r.Context(), key, &report, func(ctx context.Context) (interface{}, error) {
			return h.builder.Build(ctx, params)
		})
	} else {
		report, err = h.builder.Build(r.Context(), params)
	}
	if err != nil {
		h.metrics.ObserveReportBuild("error", time.Since(start))
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveReportBuild("ok", time.Since(start))

	httpx.JSON(w, http.StatusOK, reportResponse{
		Project:     code,
		GeneratedAt: now,
		Report:      report,
	})
}

// respondError translates domain sentinels into httpx sentinels and hands
// rendering to httpx.RespondError.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, projects.ErrProjectNotFound):
		err = fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, projects.ErrTreeCorrupted):
		h.logger.Error("tree integrity violation surfaced by report", slog.Any("error", err))
		err = httpx.ErrIntegrity
	default:
		h.logger.Error("build usage report", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
