// Package transport is the authenticated JSON client of the LCFS API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bcgov/lcfs-portal/internal/domain"
	"github.com/bcgov/lcfs-portal/internal/middleware"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultHealthPath = "/health"
	maxErrorBody      = 4 << 10
	requestIDHeader   = "X-Request-ID"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token. The empty token sends no header.
type StaticToken string

// Token returns t.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// HealthStatus is the last known state of the API connection.
type HealthStatus struct {
	IsHealthy bool
	LastCheck time.Time
	LastError error
}

// Client implements domain.HTTPClient over net/http.
type Client struct {
	baseURL    string
	http       *http.Client
	tokens     TokenSource
	healthPath string
	logger     *zap.Logger

	// read by health checks without locking
	healthStatus atomic.Pointer[HealthStatus]
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		if ts != nil {
			c.tokens = ts
		}
	}
}

// WithHealthPath sets the path probed by CheckConnection.
func WithHealthPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.healthPath = path
		}
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		http:       &http.Client{Timeout: defaultTimeout},
		tokens:     StaticToken(""),
		healthPath: defaultHealthPath,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.healthStatus.Store(&HealthStatus{})
	return c, nil
}

// Get decodes the JSON answer of a GET into out.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, params, nil, out)
}

// Post sends body as JSON and decodes the answer into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

// Put sends body as JSON and decodes the answer into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE and decodes the answer into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, out)
}

// Download fetches a binary file. The filename comes from Content-Disposition.
func (c *Client) Download(ctx context.Context, path string, params url.Values) (*domain.Download, error) {
	resp, err := c.do(ctx, http.MethodGet, path, params, nil, "*/*")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Op: http.MethodGet, Path: path, Err: err}
	}
	return &domain.Download{
		Filename:    filename(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func filename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func (c *Client) doJSON(ctx context.Context, method, path string, params url.Values, body, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		payload = bytes.NewReader(b)
	}

	resp, err := c.do(ctx, method, path, params, payload, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &domain.NetworkError{Op: method, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// do sends one request and returns the response of a 2xx answer. Anything
// else becomes a *domain.NetworkError.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, accept string) (*http.Response, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &domain.NetworkError{Op: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	req.Header.Set(requestIDHeader, requestID)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &domain.NetworkError{Op: method, Path: path, Err: fmt.Errorf("get token: %w", err)}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api request failed",
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &domain.NetworkError{Op: method, Path: path, Err: err}
	}

	c.logger.Debug("api request",
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.NetworkError{
			Op:         method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	return resp, nil
}

// CheckConnection probes the API health endpoint and records the outcome.
func (c *Client) CheckConnection(ctx context.Context) error {
	err := c.Get(ctx, c.healthPath, nil, nil)
	c.healthStatus.Store(&HealthStatus{
		IsHealthy: err == nil,
		LastCheck: time.Now(),
		LastError: err,
	})
	if err != nil {
		return fmt.Errorf("api health check failed: %w", err)
	}
	return nil
}

// Health returns the outcome of the last CheckConnection.
func (c *Client) Health() HealthStatus {
	return *c.healthStatus.Load()
}

var _ domain.HTTPClient = (*Client)(nil)
