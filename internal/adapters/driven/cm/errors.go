package cm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

// maxErrorBody bounds how much of an error response body is kept.
const maxErrorBody = 512

// APIError represents a non-success response from the repository.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cm: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("cm: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps server-side failures onto domain errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode >= http.StatusInternalServerError:
		return domain.ErrConnectionBroken
	case e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized:
		return domain.ErrAuthInvalid
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return nil
	}
}

// IsNotFound checks if the error indicates a missing document.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return errors.Is(err, domain.ErrAuthInvalid)
}

// IsClientError checks if the repository answered and rejected the request.
func IsClientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
	}
	return false
}

// IsConnectionBroken checks if the error means the repository is unreachable.
func IsConnectionBroken(err error) bool {
	return errors.Is(err, domain.ErrConnectionBroken)
}
