package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig indicates the configuration or a job descriptor is unusable.
	ErrConfig = errors.New("invalid configuration")

	// ErrNoClient indicates no repository client is available.
	// Usually caused by missing credentials.
	ErrNoClient = errors.New("repository client unavailable")

	// Repository Errors.

	// ErrConnectionBroken indicates the repository is unreachable.
	// It is the only error that crosses the worker boundary of a batch:
	// it halts dispatch and marks the daemon as paused until a probe succeeds.
	ErrConnectionBroken = errors.New("repository connection broken")

	// ErrRateLimited indicates the repository rejected the request due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// Authentication Errors.

	// ErrAuthRequired indicates no credentials are configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the authentication credentials are invalid.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrTokenRefreshFailed indicates token acquisition or renewal failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")
)
