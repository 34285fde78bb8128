// Package gateway is the single chokepoint through which every call to
// the storefront backend is issued. It attaches the bearer token from
// the persisted session, instruments the call, and normalizes failures
// into the Error taxonomy. It never redirects or clears the session
// itself; that policy belongs to the stores.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every request; a request that exceeds it is
// reported as a network failure. There are no automatic retries.
const DefaultTimeout = 10 * time.Second

// TokenSource yields the current bearer token, or "" when the client is
// anonymous. Only the session store writes the token; everyone else
// reads it through this interface.
type TokenSource interface {
	Token() string
}

// Client issues JSON requests against the backend base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
}

// New creates a gateway for the given base URL. A zero timeout falls
// back to DefaultTimeout.
func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: tokens,
		logger: util.GetLogger(),
	}
}

// Get issues a GET and decodes the response body into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete issues a DELETE and decodes the response body into out when
// the server sends one.
func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		util.APIRequestsTotal.WithLabelValues(method, "0").Inc()
		util.APIRequestFailures.WithLabelValues(string(CategoryNetwork)).Inc()
		c.logger.Warn("Backend call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return &Error{Category: CategoryNetwork, Detail: fallbackDetail(CategoryNetwork)}
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	util.APIRequestDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
	util.APIRequestsTotal.WithLabelValues(method, status).Inc()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Category: CategoryNetwork, Detail: fallbackDetail(CategoryNetwork)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		category := categorize(resp.StatusCode)
		util.APIRequestFailures.WithLabelValues(string(category)).Inc()
		return &Error{
			Status:   resp.StatusCode,
			Category: category,
			Detail:   extractDetail(raw, category),
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// extractDetail pulls the backend's {"detail": "..."} message out of an
// error body. FastAPI-style validation errors carry a structured detail
// slice; those fall back to the generic message for the category.
func extractDetail(raw []byte, category Category) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(envelope.Detail, &detail); err == nil && detail != "" {
			return detail
		}
	}
	return fallbackDetail(category)
}
