package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the backend rejected the credential, or there was
	// none to send. The session has already been logged out when it is returned.
	ErrUnauthorized = errors.New("please log in again")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("not allowed")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}

// NetworkError is a request that never got an HTTP answer.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
