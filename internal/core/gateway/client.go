// Package gateway is the HTTP adapter for the documentation-assistant backend.
//
// Every untyped backend payload is mapped to models types here, once, with the
// defaulting rules applied in one place. The client holds no mutable state and
// may be shared by any number of sessions.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docet-dev/docet/pkg/logger"
	"github.com/docet-dev/docet/pkg/metrics"
	"go.uber.org/zap"
)

const (
	apiPrefix    = "/api/v1"
	maxBodyBytes = 8 << 20
)

// ErrNotFound is matched by APIErrors carrying a 404
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx backend response
type APIError struct {
	Op     string
	Status int
	Detail string // from the payload's detail, message or error field
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Timeouts bounds each class of call. Zero means no deadline beyond the caller's context.
type Timeouts struct {
	Request time.Duration
	Send    time.Duration
	Ingest  time.Duration
}

// Client talks to the backend
type Client struct {
	baseURL  string
	http     *http.Client
	log      *logger.Logger
	timeouts Timeouts
	retry    RetryConfig
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = logger.OrNop(l).Named("gateway") }
}

// WithTimeouts sets per-call deadlines
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) { c.timeouts = t }
}

// WithRetry sets the backoff used for idempotent reads
func WithRetry(r RetryConfig) Option {
	return func(c *Client) { c.retry = r }
}

// New creates a client for the backend at baseURL (e.g. http://localhost:8000)
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     logger.Nop(),
		retry:   DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// do performs one request. A nil body sends no payload; a nil out discards the response.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	status := "error"
	defer func() {
		elapsed := time.Since(start)
		metrics.RecordGatewayRequest(op, status, elapsed)
		fields := []zap.Field{
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("status", status),
			zap.Duration("duration", elapsed),
		}
		if err != nil {
			c.log.Warn("backend request failed", append(fields, zap.Error(err))...)
			return
		}
		c.log.Debug("backend request", fields...)
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	status = strconv.Itoa(resp.StatusCode)
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, Status: resp.StatusCode, Detail: errorDetail(data)}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

// errorDetail pulls a human-readable reason out of an error payload.
// FastAPI validation errors carry a list in detail; those are returned as compact JSON.
func errorDetail(data []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}

	if len(payload.Detail) > 0 && string(payload.Detail) != "null" {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
