// Package httpclient provides the authenticated JSON HTTP client used for
// protocol calls. Transient failures are retried with bounded exponential
// backoff; authentication and client errors surface immediately.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrAuth marks a 401 or 403 response. Never retried; the caller must
	// re-authenticate.
	ErrAuth = errors.New("authentication rejected")

	// ErrClient marks any other 4xx response. Never retried.
	ErrClient = errors.New("client error")
)

// Response is the outcome of a successful (2xx) request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client wraps http.Client with JSON encoding, bearer authentication, and
// retry classification.
type Client struct {
	httpClient *http.Client
	maxRetries uint64
	log        *slog.Logger
}

// Opt configures a Client.
type Opt func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Opt {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMaxRetries bounds the number of retry attempts for transient
// failures. Zero disables retrying.
func WithMaxRetries(n uint64) Opt {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithLogger overrides the client's logger.
func WithLogger(log *slog.Logger) Opt {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a client with a sensible default timeout and three retries.
func New(opts ...Opt) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		maxRetries: 3,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs a request, retrying transient failures. A non-nil body is
// JSON-encoded. bearer, when non-empty, is sent as a Bearer token.
func (c *Client) Do(ctx context.Context, method, url, bearer string, body interface{}) (*Response, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var out *Response
	operation := func() error {
		resp, err := c.attempt(ctx, method, url, bearer, encoded)
		if err != nil {
			return err
		}
		out = resp
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.log.Warn("retrying request", "method", method, "url", url, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) attempt(ctx context.Context, method, url, bearer string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: payload}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s returned %s", ErrAuth, url, resp.Status))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s returned %s: %s", ErrClient, url, resp.Status, payload))
	default:
		return nil, fmt.Errorf("%s returned %s: %s", url, resp.Status, payload)
	}
}

// GetJSON performs an authenticated GET and decodes the JSON response into
// out.
func (c *Client) GetJSON(ctx context.Context, url, bearer string, out interface{}) error {
	resp, err := c.Do(ctx, http.MethodGet, url, bearer, nil)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// PostJSON performs an authenticated POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, url, bearer string, body interface{}) (*Response, error) {
	return c.Do(ctx, http.MethodPost, url, bearer, body)
}
