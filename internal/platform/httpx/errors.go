package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors handlers translate domain failures into before responding.
// The translation happens at the HTTP boundary; domain packages keep their
// own sentinels.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicate     = errors.New("duplicate entry")
	ErrValidation    = errors.New("validation failed")
	ErrUnprocessable = errors.New("unprocessable request")
	ErrIntegrity     = errors.New("data integrity violation")
)

// RespondError renders a translated error as an RFC7807 problem. Integrity
// violations and unrecognised errors carry no detail.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnprocessable):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Operation", err.Error())
	case errors.Is(err, ErrIntegrity):
		Problem(w, http.StatusInternalServerError, "Data Integrity Violation", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
