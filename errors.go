package walletauth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBadRequest is returned for rejected input, e.g. a signature mismatch
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized is returned when the bearer token is missing, invalid, expired or revoked
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the address is not authorized to log in
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned for unknown sessions or addresses
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for uniqueness and lockout conflicts
	ErrConflict = errors.New("conflict")
)

// APIError is a non-2xx response from the service
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("walletauth: %d: %s", e.Status, e.Detail)
}

// Unwrap maps the status class to one of the sentinel errors
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}
