// Package projecthttp serves hierarchy navigation and structural mutations.
package projecthttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallyhq/tally/internal/platform/httpx"
	"github.com/tallyhq/tally/internal/projects"
)

// TreeService answers navigation queries.
type TreeService interface {
	Get(ctx context.Context, code string) (projects.Project, error)
	Ancestors(ctx context.Context, p projects.Project, includeSelf bool) ([]projects.Project, error)
	Descendants(ctx context.Context, p projects.Project, includeSelf bool, maxDepth int) ([]projects.Project, error)
	Children(ctx context.Context, p projects.Project) ([]projects.Project, error)
	Siblings(ctx context.Context, p projects.Project, includeSelf bool) ([]projects.Project, error)
	Root(ctx context.Context, p projects.Project) (projects.Project, error)
	Depth(ctx context.Context, p projects.Project) (int, error)
	Path(ctx context.Context, p projects.Project, separator string) (string, error)
}

// TreeMutator performs structural mutations.
type TreeMutator interface {
	Insert(ctx context.Context, input projects.InsertInput) (projects.Project, error)
	Move(ctx context.Context, code, newParentCode string) (projects.Project, error)
	Remove(ctx context.Context, code string) error
}

// CacheBumper invalidates derived caches after a mutation.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Handler coordinates HTTP requests for the project hierarchy.
type Handler struct {
	logger   *slog.Logger
	service  TreeService
	writer   TreeMutator
	cache    CacheBumper
	validate *validator.Validate
}

// NewHandler constructs the projects HTTP handler.
func NewHandler(logger *slog.Logger, service TreeService, writer TreeMutator, cache CacheBumper) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		writer:   writer,
		cache:    cache,
		validate: validator.New(),
	}
}

// Mount registers the project routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/projects/{code}", h.getProject)
	r.Get("/projects/{code}/tree", h.getTree)
	r.Post("/projects", h.insertProject)
	r.Post("/projects/{code}/move", h.moveProject)
	r.Delete("/projects/{code}", h.removeProject)
}

// projectView augments the stored node with derived hierarchy facts.
type projectView struct {
	projects.Project
	Depth       int    `json:"depth"`
	Path        string `json:"path"`
	IsRoot      bool   `json:"is_root"`
	IsLeaf      bool   `json:"is_leaf"`
	SubtreeSize int64  `json:"subtree_size"`
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	depth, err := h.service.Depth(r.Context(), p)
	if err != nil {
		h.respondError(w, err)
		return
	}
	path, err := h.service.Path(r.Context(), p, "/")
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projectView{
		Project:     p,
		Depth:       depth,
		Path:        path,
		IsRoot:      p.IsRoot(),
		IsLeaf:      p.IsLeaf(),
		SubtreeSize: p.SubtreeSize(),
	})
}

func (h *Handler) getTree(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	includeSelf := r.URL.Query().Get("self") == "true"
	maxDepth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		maxDepth, err = strconv.Atoi(raw)
		if err != nil || maxDepth < 0 {
			httpx.RespondError(w, fmt.Errorf("%w: depth must be a non-negative integer", httpx.ErrValidation))
			return
		}
	}

	var nodes []projects.Project
	switch op := r.URL.Query().Get("op"); op {
	case "", "descendants":
		nodes, err = h.service.Descendants(r.Context(), p, includeSelf, maxDepth)
	case "ancestors":
		nodes, err = h.service.Ancestors(r.Context(), p, includeSelf)
	case "children":
		nodes, err = h.service.Children(r.Context(), p)
	case "siblings":
		nodes, err = h.service.Siblings(r.Context(), p, includeSelf)
	case "root":
		var root projects.Project
		root, err = h.service.Root(r.Context(), p)
		nodes = []projects.Project{root}
	default:
		httpx.RespondError(w, fmt.Errorf("%w: unknown tree operation %q", httpx.ErrValidation, op))
		return
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"project": p.Code, "nodes": nodes})
}

type insertRequest struct {
	Code           string `json:"code" validate:"required,max=64"`
	Title          string `json:"title" validate:"required,max=256"`
	ParentCode     string `json:"parent_code" validate:"omitempty,max=64"`
	ChargingExempt bool   `json:"charging_exempt"`
}

func (h *Handler) insertProject(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	p, err := h.writer.Insert(r.Context(), projects.InsertInput{
		Code:           req.Code,
		Title:          req.Title,
		ParentCode:     req.ParentCode,
		ChargingExempt: req.ChargingExempt,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.bumpCaches(r.Context())
	httpx.JSON(w, http.StatusCreated, p)
}

type moveRequest struct {
	NewParentCode string `json:"new_parent_code" validate:"required,max=64"`
}

func (h *Handler) moveProject(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	p, err := h.writer.Move(r.Context(), chi.URLParam(r, "code"), req.NewParentCode)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.bumpCaches(r.Context())
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) removeProject(w http.ResponseWriter, r *http.Request) {
	if err := h.writer.Remove(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.respondError(w, err)
		return
	}
	h.bumpCaches(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bumpCaches(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Bump(ctx); err != nil {
		h.logger.Warn("bump usage cache", slog.Any("error", err))
	}
}

// respondError translates domain sentinels into httpx sentinels and hands
// rendering to httpx.RespondError.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, projects.ErrProjectNotFound):
		err = fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, projects.ErrDuplicateCode):
		err = fmt.Errorf("%w: %v", httpx.ErrDuplicate, err)
	case errors.Is(err, projects.ErrCrossTreeMove), errors.Is(err, projects.ErrMoveIntoSubtree):
		err = fmt.Errorf("%w: %v", httpx.ErrUnprocessable, err)
	case errors.Is(err, projects.ErrTreeCorrupted):
		h.logger.Error("tree integrity violation", slog.Any("error", err))
		err = httpx.ErrIntegrity
	default:
		h.logger.Error("project request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
