package driven

import "context"

// TokenProvider provides bearer tokens for repository calls.
// Implementations cache the token and renew it before it expires.
type TokenProvider interface {
	// GetToken returns a valid access token, logging in if required.
	GetToken(ctx context.Context) (string, error)

	// Invalidate discards the cached token.
	// The next GetToken call logs in again. Used after a 401 response.
	Invalidate()
}
