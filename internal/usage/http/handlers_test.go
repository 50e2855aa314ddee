package usagehttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tally/internal/platform/httpx"
	"github.com/tallyhq/tally/internal/projects"
	"github.com/tallyhq/tally/internal/usage"
)

type stubBuilder struct {
	report usage.Report
	err    error
}

func (s *stubBuilder) Build(ctx context.Context, params usage.Params) (usage.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func newTestHandler(builder *stubBuilder) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(logger, builder, nil, nil).Mount(r)
	return r
}

func TestGetUsageOK(t *testing.T) {
	builder := &stubBuilder{report: usage.Report{
		"cheyenne": {Resource: "cheyenne", Allocated: 1000, Used: 350, Remaining: 650},
	}}
	rec := httptest.NewRecorder()
	newTestHandler(builder).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/labs/usage", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Project != "labs" {
		t.Fatalf("project = %q, want labs", resp.Project)
	}
	if resp.Report["cheyenne"].Used != 350 {
		t.Fatalf("report entry lost: %+v", resp.Report)
	}
}

func TestGetUsageProjectNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	builder := &stubBuilder{err: projects.ErrProjectNotFound}
	newTestHandler(builder).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/nope/usage", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var pd httpx.ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &pd); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if pd.Title != "Not Found" {
		t.Fatalf("title = %q, want Not Found", pd.Title)
	}
}

func TestGetUsageCorruptedTreeHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	builder := &stubBuilder{err: projects.ErrTreeCorrupted}
	newTestHandler(builder).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/labs/usage", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var pd httpx.ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &pd); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if pd.Title != "Data Integrity Violation" {
		t.Fatalf("title = %q, want Data Integrity Violation", pd.Title)
	}
	if pd.Detail != "" {
		t.Fatalf("corruption detail leaked: %q", pd.Detail)
	}
}
