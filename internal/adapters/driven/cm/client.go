package cm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
	"github.com/custodia-labs/cmsync/internal/logger"
)

const (
	// ProbeTimeout bounds a connectivity probe.
	ProbeTimeout = 10 * time.Second

	// attrItemType carries the item type in uploaded attributes and search results.
	attrItemType = "itemtype"
)

// Ensure Client implements the interface.
var _ driven.RepositoryClient = (*Client)(nil)

// bodyFunc builds a fresh request body for each attempt.
type bodyFunc func() (io.Reader, string, error)

// Client talks to the repository REST API.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
	tokens    driven.TokenProvider
	limiter   *RateLimiter
}

// NewClient creates a repository client.
func NewClient(cfg domain.RepositoryConfig, tokens driven.TokenProvider) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.APIBaseURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: repository.api_base_url %q is not an http(s) URL", domain.ErrConfig, cfg.APIBaseURL)
	}
	if tokens == nil {
		return nil, domain.ErrAuthRequired
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = domain.DefaultUserAgent
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = domain.DefaultRequestTimeout
	}

	// Bodies may be large, so the timeout is an idle timeout on each
	// request (see watchdog) rather than a bound on the whole exchange.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &Client{
		baseURL:   strings.TrimRight(base.String(), "/"),
		userAgent: userAgent,
		timeout:   timeout,
		transport: transport,
		tokens:    tokens,
		limiter:   NewRateLimiter(cfg.RequestsPerSecond),
	}, nil
}

// Upload creates a document from the file at path.
func (c *Client) Upload(ctx context.Context, path, itemType string, metadata map[string]any) (string, error) {
	attrs := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		attrs[k] = v
	}
	attrs[attrItemType] = itemType
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}

	logger.Info("cm: uploading %s as %s", path, itemType)
	resp, err := c.do(ctx, http.MethodPost, "items", nil, multipartBody(path, encoded))
	if err != nil {
		if IsClientError(err) {
			logger.Error("cm: upload of %s rejected: %v", path, err)
			return "", nil
		}
		return "", err
	}
	defer resp.Body.Close()

	var created struct {
		ID json.RawMessage `json:"id"`
	}
	body := &trackingReader{r: resp.Body}
	if err := json.NewDecoder(body).Decode(&created); err != nil {
		if body.err != nil {
			return "", fmt.Errorf("%w: read upload response for %s: %v", domain.ErrConnectionBroken, path, body.err)
		}
		logger.Error("cm: upload of %s returned an unreadable response: %v", path, err)
		return "", nil
	}
	docID := idString(created.ID)
	if docID == "" {
		logger.Error("cm: upload of %s returned no document id", path)
	}
	return docID, nil
}

// Download streams the document content to targetPath.
// Content is written to a temporary file in the target directory and
// renamed into place once complete.
func (c *Client) Download(ctx context.Context, docID, targetPath string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "items/"+url.PathEscape(docID)+"/datastreams/content", nil, nil)
	if err != nil {
		if IsClientError(err) {
			logger.Error("cm: download of %s rejected: %v", docID, err)
			return false, nil
		}
		return false, err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(targetPath), ".cmsync-*.part")
	if err != nil {
		return false, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	body := &trackingReader{r: resp.Body}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close() //nolint:errcheck
		if body.err != nil {
			return false, fmt.Errorf("%w: read content of %s: %v", domain.ErrConnectionBroken, docID, body.err)
		}
		return false, fmt.Errorf("write %s: %w", targetPath, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("write %s: %w", targetPath, err)
	}
	if err := os.Rename(tmpName, targetPath); err != nil {
		return false, fmt.Errorf("rename into %s: %w", targetPath, err)
	}

	logger.Info("cm: downloaded %s to %s", docID, targetPath)
	return true, nil
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, docID string) (bool, error) {
	resp, err := c.do(ctx, http.MethodDelete, "items/"+url.PathEscape(docID), nil, nil)
	if err != nil {
		if IsClientError(err) {
			logger.Warn("cm: delete of %s rejected: %v", docID, err)
			return false, nil
		}
		return false, err
	}
	drain(resp)
	logger.Info("cm: deleted %s", docID)
	return true, nil
}

// UpdateMetadata replaces document attributes. Documents addressed by an
// alternate ID are resolved by search; the first match is used.
func (c *Client) UpdateMetadata(ctx context.Context, update domain.MetadataUpdate) (bool, error) {
	docID := update.DocumentID
	if docID == "" {
		if !update.HasAlternateID() {
			logger.Error("cm: metadata update has neither a document id nor an alternate id")
			return false, nil
		}
		resolved, err := c.resolveAlternateID(ctx, update)
		if err != nil || resolved == "" {
			return false, err
		}
		docID = resolved
	}

	payload, err := json.Marshal(map[string]any{"attributes": update.Metadata})
	if err != nil {
		return false, fmt.Errorf("encode attributes: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "items/"+url.PathEscape(docID), nil, jsonBody(payload))
	if err != nil {
		if IsClientError(err) {
			logger.Error("cm: metadata update of %s rejected: %v", docID, err)
			return false, nil
		}
		return false, err
	}
	drain(resp)
	logger.Info("cm: updated metadata of %s", docID)
	return true, nil
}

func (c *Client) resolveAlternateID(ctx context.Context, update domain.MetadataUpdate) (string, error) {
	criteria := map[string]string{update.ObjectIDField: update.ObjectID}
	items, err := c.Search(ctx, criteria, update.ItemType)
	if err != nil {
		if IsClientError(err) {
			logger.Error("cm: search for %s=%s rejected: %v", update.ObjectIDField, update.ObjectID, err)
			return "", nil
		}
		return "", err
	}
	if len(items) == 0 {
		logger.Error("cm: no document found with %s=%s (item type %q)", update.ObjectIDField, update.ObjectID, update.ItemType)
		return "", nil
	}
	if len(items) > 1 {
		logger.Warn("cm: %d documents found with %s=%s, using %s",
			len(items), update.ObjectIDField, update.ObjectID, items[0].ID)
	}
	if items[0].ID == "" {
		logger.Error("cm: document found with %s=%s has no id", update.ObjectIDField, update.ObjectID)
		return "", nil
	}
	return items[0].ID, nil
}

// Search returns documents whose attributes match all criteria.
func (c *Client) Search(ctx context.Context, criteria map[string]string, itemType string) ([]domain.Item, error) {
	query := buildQuery(criteria, itemType)
	if query == "" {
		logger.Warn("cm: search called without criteria or item type")
		return nil, nil
	}

	logger.Debug("cm: searching with %s", query)
	resp, err := c.do(ctx, http.MethodGet, "search", url.Values{"q": {query}}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Results []map[string]any `json:"results"`
	}
	body := &trackingReader{r: resp.Body}
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		if body.err != nil {
			return nil, fmt.Errorf("%w: read search response: %v", domain.ErrConnectionBroken, body.err)
		}
		logger.Warn("cm: search response is not in the expected format: %v", err)
		return nil, nil
	}

	items := make([]domain.Item, 0, len(result.Results))
	for _, raw := range result.Results {
		items = append(items, toItem(raw))
	}
	return items, nil
}

// TestConnection probes the API root.
func (c *Client) TestConnection(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "", nil, nil)
	if err != nil {
		if IsClientError(err) {
			logger.Warn("cm: connection test answered with %v", err)
			return false, nil
		}
		return false, err
	}
	drain(resp)
	return true, nil
}

// do sends a request. A 401 invalidates the token and retries once.
// Responses with status 400 and above are returned as *APIError.
// Each attempt is cancelled when no data moves for the request timeout.
// The returned body must be closed.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body bodyFunc) (*http.Response, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrConnectionBroken, method, path, err)
		}

		var reader io.Reader
		var contentType string
		if body != nil {
			var err error
			if reader, contentType, err = body(); err != nil {
				return nil, err
			}
		}

		reqCtx, wd := newWatchdog(ctx, c.timeout)
		req, err := http.NewRequestWithContext(reqCtx, method, endpoint, reader)
		if err != nil {
			wd.stop()
			if rc, ok := reader.(io.Closer); ok {
				rc.Close() //nolint:errcheck
			}
			return nil, fmt.Errorf("build request: %w", err)
		}
		if req.Body != nil {
			req.Body = &watchedBody{ReadCloser: req.Body, w: wd}
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient(reqCtx).Do(req)
		if err != nil {
			wd.stop()
			return nil, transportError(method, path, wd.annotate(err))
		}
		resp.Body = &watchedBody{ReadCloser: resp.Body, w: wd, release: true}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 1 {
			drain(resp)
			logger.Warn("cm: %s %s returned 401, renewing token and retrying", method, path)
			c.tokens.Invalidate()
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, c.statusError(method, path, resp)
		}
		return resp, nil
	}
}

// httpClient authorises requests through oauth2.Transport. The token source
// carries the request context so a login runs under the caller's deadline.
// The provider owns token caching, so the source is not wrapped in
// oauth2.ReuseTokenSource.
func (c *Client) httpClient(ctx context.Context) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: NewTokenSource(ctx, c.tokens),
			Base:   c.transport,
		},
	}
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.Backoff(retryAfter(resp))
	}
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Method:     method,
		Path:       "/" + strings.TrimLeft(path, "/"),
		Message:    strings.TrimSpace(string(msg)),
	}
	logger.Debug("%v", apiErr)
	return apiErr
}

// transportError classifies a failed round trip. Authentication failures
// keep their cause; everything else means the repository is unreachable.
func transportError(method, path string, err error) error {
	switch {
	case errors.Is(err, domain.ErrAuthInvalid),
		errors.Is(err, domain.ErrAuthRequired),
		errors.Is(err, domain.ErrTokenRefreshFailed),
		errors.Is(err, domain.ErrConnectionBroken):
		return fmt.Errorf("%s %s: %w", method, path, err)
	default:
		return fmt.Errorf("%w: %s %s: %v", domain.ErrConnectionBroken, method, path, err)
	}
}

// buildQuery renders search criteria as itemtype='T' AND @attr='value'.
func buildQuery(criteria map[string]string, itemType string) string {
	var parts []string
	if itemType != "" {
		parts = append(parts, fmt.Sprintf("itemtype='%s'", quote(itemType)))
	}
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("@%s='%s'", k, quote(criteria[k])))
	}
	return strings.Join(parts, " AND ")
}

func quote(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// toItem converts a search result. Attributes are read from a nested
// "attributes" object when present, otherwise from the remaining keys.
func toItem(raw map[string]any) domain.Item {
	item := domain.Item{Attributes: make(map[string]any)}
	if id, ok := raw["id"]; ok {
		item.ID = fmt.Sprint(id)
	}
	if t, ok := raw[attrItemType].(string); ok {
		item.ItemType = t
	}
	if nested, ok := raw["attributes"].(map[string]any); ok {
		item.Attributes = nested
		return item
	}
	for k, v := range raw {
		if k == "id" || k == attrItemType {
			continue
		}
		item.Attributes[k] = v
	}
	return item
}

// idString accepts a string or numeric id.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func jsonBody(payload []byte) bodyFunc {
	return func() (io.Reader, string, error) {
		return bytes.NewReader(payload), "application/json", nil
	}
}

// multipartBody streams the file as the "file" part followed by the
// JSON attributes as the "attributes" field.
func multipartBody(path string, attrs []byte) bodyFunc {
	return func() (io.Reader, string, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", path, err)
		}
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			defer f.Close()
			pw.CloseWithError(writeMultipart(mw, f, filepath.Base(path), attrs)) //nolint:errcheck
		}()
		return pr, mw.FormDataContentType(), nil
	}
}

func writeMultipart(mw *multipart.Writer, content io.Reader, filename string, attrs []byte) error {
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	if err := mw.WriteField("attributes", string(attrs)); err != nil {
		return err
	}
	return mw.Close()
}

// trackingReader records read errors so they can be told apart from write errors.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck
	resp.Body.Close()
}
