package cm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// loginTimeout bounds a single login request.
const loginTimeout = 10 * time.Second

// bearerPrefix prefixes the token in a plain-text login response.
const bearerPrefix = "Bearer "

// Ensure LoginTokenProvider implements the interface.
var _ driven.TokenProvider = (*LoginTokenProvider)(nil)

// LoginTokenProvider obtains bearer tokens from the login endpoint.
// Tokens carry no expiry, so a token is reused for the configured validity
// less the renewal threshold.
type LoginTokenProvider struct {
	cfg       domain.AuthConfig
	password  string
	userAgent string
	http      *http.Client

	mu       sync.Mutex
	token    string
	renewsAt time.Time
	now      func() time.Time
}

// NewLoginTokenProvider creates a token provider for the configured user.
func NewLoginTokenProvider(cfg domain.AuthConfig, password, userAgent string) (*LoginTokenProvider, error) {
	if cfg.LoginURL == "" {
		return nil, fmt.Errorf("%w: auth.login_url is not set", domain.ErrConfig)
	}
	if cfg.Username == "" || password == "" {
		return nil, domain.ErrAuthRequired
	}
	if cfg.TokenValidity <= 0 {
		cfg.TokenValidity = domain.DefaultTokenValidity
	}
	if userAgent == "" {
		userAgent = domain.DefaultUserAgent
	}
	return &LoginTokenProvider{
		cfg:       cfg,
		password:  password,
		userAgent: userAgent,
		http:      &http.Client{Timeout: loginTimeout},
		now:       time.Now,
	}, nil
}

// GetToken returns the cached token, logging in when it is missing or due for renewal.
func (p *LoginTokenProvider) GetToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.renewsAt) {
		return p.token, nil
	}

	logger.Debug("cm: bearer token missing or expiring, logging in")
	token, err := p.login(ctx)
	if err != nil {
		return "", err
	}
	p.token = token
	p.renewsAt = p.now().Add(p.cfg.TokenRenewAfter())
	logger.Info("cm: obtained bearer token, renewal due at %s", p.renewsAt.Format(time.RFC3339))
	return token, nil
}

// Invalidate discards the cached token.
func (p *LoginTokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.renewsAt = time.Time{}
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	ServerName string `json:"servername"`
}

func (p *LoginTokenProvider) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{
		Username:   p.cfg.Username,
		Password:   p.password,
		ServerName: p.cfg.ServerName,
	})
	if err != nil {
		return "", fmt.Errorf("encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.LoginURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build login request: %v", domain.ErrConfig, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)
	if p.cfg.LoginHost != "" {
		req.Host = p.cfg.LoginHost
	}

	resp, err := p.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: login: %v", domain.ErrConnectionBroken, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: read login response: %v", domain.ErrConnectionBroken, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: login rejected with status %d", domain.ErrAuthInvalid, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("%w: login: status %d", domain.ErrConnectionBroken, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: login: status %d", domain.ErrTokenRefreshFailed, resp.StatusCode)
	}

	return parseLoginResponse(data)
}

// parseLoginResponse accepts either "Bearer <token>" or {"token": "..."}.
func parseLoginResponse(data []byte) (string, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, bearerPrefix) {
		token := strings.TrimSpace(strings.TrimPrefix(text, bearerPrefix))
		if token == "" {
			return "", fmt.Errorf("%w: empty bearer token", domain.ErrTokenRefreshFailed)
		}
		return token, nil
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return "", fmt.Errorf("%w: unrecognised login response", domain.ErrTokenRefreshFailed)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("%w: login response has no token", domain.ErrTokenRefreshFailed)
	}
	return payload.Token, nil
}

// tokenSource adapts a TokenProvider to oauth2.TokenSource so requests can
// be authorised by oauth2.Transport.
type tokenSource struct {
	provider driven.TokenProvider
	ctx      context.Context
}

// NewTokenSource creates an oauth2.TokenSource from a TokenProvider.
func NewTokenSource(ctx context.Context, provider driven.TokenProvider) oauth2.TokenSource {
	return &tokenSource{provider: provider, ctx: ctx}
}

// Token implements oauth2.TokenSource.
func (t *tokenSource) Token() (*oauth2.Token, error) {
	accessToken, err := t.provider.GetToken(t.ctx)
	if err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, errors.New("cm: token provider returned an empty token")
	}
	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}, nil
}
