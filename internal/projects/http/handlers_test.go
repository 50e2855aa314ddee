package projecthttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tally/internal/platform/httpx"
	"github.com/tallyhq/tally/internal/projects"
)

type stubTreeService struct {
	byCode map[string]projects.Project
	getErr error
}

func (s *stubTreeService) Get(ctx context.Context, code string) (projects.Project, error) {
	if s.getErr != nil {
		return projects.Project{}, s.getErr
	}
	p, ok := s.byCode[code]
	if !ok {
		return projects.Project{}, projects.ErrProjectNotFound
	}
	return p, nil
}

func (s *stubTreeService) Ancestors(ctx context.Context, p projects.Project, includeSelf bool) ([]projects.Project, error) {
	return nil, nil
}

func (s *stubTreeService) Descendants(ctx context.Context, p projects.Project, includeSelf bool, maxDepth int) ([]projects.Project, error) {
	return nil, nil
}

func (s *stubTreeService) Children(ctx context.Context, p projects.Project) ([]projects.Project, error) {
	return nil, nil
}

func (s *stubTreeService) Siblings(ctx context.Context, p projects.Project, includeSelf bool) ([]projects.Project, error) {
	return nil, nil
}

func (s *stubTreeService) Root(ctx context.Context, p projects.Project) (projects.Project, error) {
	return p, nil
}

func (s *stubTreeService) Depth(ctx context.Context, p projects.Project) (int, error) {
	return 0, nil
}

func (s *stubTreeService) Path(ctx context.Context, p projects.Project, separator string) (string, error) {
	return p.Code, nil
}

type stubMutator struct {
	insertErr error
	moveErr   error
	removeErr error
}

func (s *stubMutator) Insert(ctx context.Context, input projects.InsertInput) (projects.Project, error) {
	return projects.Project{Code: input.Code, TreeLeft: 1, TreeRight: 2}, s.insertErr
}

func (s *stubMutator) Move(ctx context.Context, code, newParentCode string) (projects.Project, error) {
	return projects.Project{Code: code, TreeLeft: 1, TreeRight: 2}, s.moveErr
}

func (s *stubMutator) Remove(ctx context.Context, code string) error {
	return s.removeErr
}

func newTestHandler(service *stubTreeService, writer *stubMutator) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(logger, service, writer, nil).Mount(r)
	return r
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var pd httpx.ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &pd); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return pd
}

func TestGetProjectNotFound(t *testing.T) {
	h := newTestHandler(&stubTreeService{byCode: map[string]projects.Project{}}, &stubMutator{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if pd := decodeProblem(t, rec); pd.Title != "Not Found" {
		t.Fatalf("title = %q, want Not Found", pd.Title)
	}
}

func TestInsertDuplicateCode(t *testing.T) {
	h := newTestHandler(&stubTreeService{}, &stubMutator{insertErr: projects.ErrDuplicateCode})
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"code":"labs","title":"Research Labs"}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", body))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if pd := decodeProblem(t, rec); pd.Title != "Duplicate" {
		t.Fatalf("title = %q, want Duplicate", pd.Title)
	}
}

func TestInsertInvalidBody(t *testing.T) {
	h := newTestHandler(&stubTreeService{}, &stubMutator{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(`{`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if pd := decodeProblem(t, rec); pd.Title != "Validation Failed" {
		t.Fatalf("title = %q, want Validation Failed", pd.Title)
	}
}

func TestMoveRejections(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"cross tree", projects.ErrCrossTreeMove},
		{"into own subtree", projects.ErrMoveIntoSubtree},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&stubTreeService{}, &stubMutator{moveErr: tc.err})
			rec := httptest.NewRecorder()
			body := strings.NewReader(`{"new_parent_code":"genomics"}`)
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/climate/move", body))

			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			if pd := decodeProblem(t, rec); pd.Title != "Invalid Operation" {
				t.Fatalf("title = %q, want Invalid Operation", pd.Title)
			}
		})
	}
}

func TestCorruptedTreeHidesDetail(t *testing.T) {
	h := newTestHandler(&stubTreeService{getErr: projects.ErrTreeCorrupted}, &stubMutator{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/labs", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	pd := decodeProblem(t, rec)
	if pd.Title != "Data Integrity Violation" {
		t.Fatalf("title = %q, want Data Integrity Violation", pd.Title)
	}
	if pd.Detail != "" {
		t.Fatalf("corruption detail leaked: %q", pd.Detail)
	}
}

func TestUnknownTreeOperation(t *testing.T) {
	p := projects.Project{ID: 1, Code: "labs", TreeRoot: 1, TreeLeft: 1, TreeRight: 2}
	h := newTestHandler(&stubTreeService{byCode: map[string]projects.Project{"labs": p}}, &stubMutator{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/labs/tree?op=cousins", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
