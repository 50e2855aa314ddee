package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"not found", fmt.Errorf("%w: project nope", ErrNotFound), http.StatusNotFound, "Not Found"},
		{"duplicate", fmt.Errorf("%w: code taken", ErrDuplicate), http.StatusConflict, "Duplicate"},
		{"validation", fmt.Errorf("%w: depth must be non-negative", ErrValidation), http.StatusBadRequest, "Validation Failed"},
		{"unprocessable", fmt.Errorf("%w: cross-tree move", ErrUnprocessable), http.StatusUnprocessableEntity, "Invalid Operation"},
		{"integrity", ErrIntegrity, http.StatusInternalServerError, "Data Integrity Violation"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var pd ProblemDetail
			if err := json.Unmarshal(rec.Body.Bytes(), &pd); err != nil {
				t.Fatalf("decode problem: %v", err)
			}
			if pd.Title != tc.title {
				t.Fatalf("title = %q, want %q", pd.Title, tc.title)
			}
			if pd.Status != tc.status {
				t.Fatalf("problem status = %d, want %d", pd.Status, tc.status)
			}
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	for _, err := range []error{ErrIntegrity, errors.New("pool exhausted")} {
		rec := httptest.NewRecorder()
		RespondError(rec, err)
		var pd ProblemDetail
		if err := json.Unmarshal(rec.Body.Bytes(), &pd); err != nil {
			t.Fatalf("decode problem: %v", err)
		}
		if pd.Detail != "" {
			t.Fatalf("internal error leaked detail %q", pd.Detail)
		}
	}
}
