// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer. Domain packages wrap these so the HTTP
// mapping below stays in one place.
var (
	ErrNotFound              = errors.New("resource not found")
	ErrDuplicate             = errors.New("duplicate entry")
	ErrConflict              = errors.New("conflict")
	ErrValidation            = errors.New("validation failed")
	ErrForbidden             = errors.New("forbidden")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidState          = errors.New("invalid state")
)

// RespondError maps domain errors to HTTP responses using RFC7807. Titles are
// localized from the request's Accept-Language header.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	p := Printer(r)
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, p.Sprintf("Not Found"), err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, p.Sprintf("Duplicate"), err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, p.Sprintf("Conflict"), err.Error())
	case errors.Is(err, ErrInsufficientInventory):
		Problem(w, http.StatusConflict, p.Sprintf("Insufficient Inventory"), err.Error())
	case errors.Is(err, ErrInvalidState):
		Problem(w, http.StatusConflict, p.Sprintf("Invalid State"), err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, p.Sprintf("Validation Failed"), err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, p.Sprintf("Forbidden"), err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, p.Sprintf("Unauthorized"), err.Error())
	default:
		Problem(w, http.StatusInternalServerError, p.Sprintf("Internal Error"), "")
	}
}

// StatusFor reports the HTTP status RespondError would use for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict),
		errors.Is(err, ErrInsufficientInventory), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
