package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ballotdesk.org/internal/ids"
	"ballotdesk.org/internal/obs"
	"ballotdesk.org/internal/token"
)

const (
	headerRequestID   = "X-Request-Id"
	headerIdempotency = "Idempotency-Key"
)

// Client is the base HTTP client every typed resource client is built on.
// It attaches the stored bearer credential to each call, rate-limits
// outgoing traffic and maps non-2xx responses to typed errors. It never
// retries; the caller owns any retry policy.
type Client struct {
	baseURL *url.URL
	httpc   *http.Client
	tokens  token.Store
	limiter *rate.Limiter
}

// Option configures Client behavior.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpc = hc
		}
	}
}

// WithTimeout bounds each outgoing call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpc.Timeout = d
		}
	}
}

// WithRateLimit sets the outgoing token bucket.
func WithRateLimit(perSecond, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// New creates a client for the given API base URL. The token store supplies
// the bearer credential; an absent credential is not an error client-side,
// the server is the source of truth for authorization.
func New(baseURL string, tokens token.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		httpc: &http.Client{
			Timeout:   10 * time.Second,
			Transport: obs.InstrumentTransport(nil),
		},
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := ids.New()
	req.Header.Set(headerRequestID, requestID)
	if method != http.MethodGet {
		req.Header.Set(headerIdempotency, uuid.NewString())
	}
	if tok, err := c.tokens.Get(); err == nil {
		req.Header.Set("Authorization", "Bearer "+tok)
	} else if !errors.Is(err, token.ErrNotFound) {
		return fmt.Errorf("read credential: %w", err)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	duration := time.Since(start)
	if err != nil {
		obs.LogCall(map[string]any{
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
			"method":     method,
			"path":       path,
			"request_id": requestID,
			"error":      err.Error(),
			"duration":   duration.String(),
		})
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	obs.LogCall(map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"duration":   duration.String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Status:    resp.StatusCode,
			Message:   errorMessage(resp.Body),
			RequestID: requestID,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failure body, best effort.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
