// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package upstream is the HTTP client for the Users, Events and Feed
// services.
//
// Every call carries the caller's identity in the identity header and never
// the caller's Authorization header. Calls are detached from the inbound
// request's cancellation and bounded only by their own timeout. Responses
// with status >= 400 become *Error; transport failures become
// ErrUnreachable or ErrUpstreamTimeout. Bodies over the size limit become
// ErrResponseTooLarge.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/confluence/internal/auth"
	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/metrics"
)

// defaultMaxBodyBytes bounds how much of an upstream response is read.
const defaultMaxBodyBytes = 10 << 20

// SystemIdentity is the identity used for calls made on behalf of this
// service rather than a caller (message consumers).
const SystemIdentity = "system"

// TokenProvider returns a service identity token for an audience.
type TokenProvider interface {
	Token(ctx context.Context, audience string) (string, error)
}

// Request describes one upstream call.
type Request struct {
	Method string
	// Path is appended to the service base URL.
	Path  string
	Query url.Values

	// Body is sent as JSON. []byte and json.RawMessage are sent verbatim.
	Body any

	// Identity is the caller's subject id, sent in the identity header.
	Identity string

	// IfNoneMatch is forwarded for conditional GETs.
	IfNoneMatch string

	// Timeout overrides the per-method default.
	Timeout time.Duration
}

// Response is a completed upstream call with status < 400 (including 304).
type Response struct {
	StatusCode int
	Body       []byte
	ETag       string
	Location   string
	Header     http.Header
}

// NotModified reports a 304 answer to a conditional request.
func (r *Response) NotModified() bool {
	return r.StatusCode == http.StatusNotModified
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Config configures one service client.
type Config struct {
	// Name labels logs, metrics and errors (users, events, feed).
	Name    string
	BaseURL string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// IdentityHeader carries Request.Identity. Defaults to x-firebase-uid.
	IdentityHeader string

	// Tokens, when set, supplies a service identity token sent as the
	// Authorization header to hosts that need one.
	Tokens TokenProvider

	// MaxBodyBytes caps the response body size. Defaults to 10 MiB.
	MaxBodyBytes int64

	Breaker    config.BreakerConfig
	HTTPClient *http.Client
}

// Client calls one atomic service.
type Client struct {
	name           string
	baseURL        string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	identityHeader string
	tokens         TokenProvider
	maxBodyBytes   int64
	httpClient     *http.Client
	breaker        *gobreaker.CircuitBreaker[*Response]
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, errors.New("upstream client name is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid %s service url %q", cfg.Name, cfg.BaseURL)
	}

	c := &Client{
		name:           cfg.Name,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		readTimeout:    cfg.ReadTimeout,
		writeTimeout:   cfg.WriteTimeout,
		identityHeader: cfg.IdentityHeader,
		maxBodyBytes:   cfg.MaxBodyBytes,
		httpClient:     cfg.HTTPClient,
	}
	if c.maxBodyBytes <= 0 {
		c.maxBodyBytes = defaultMaxBodyBytes
	}
	if c.readTimeout <= 0 {
		c.readTimeout = 10 * time.Second
	}
	if c.writeTimeout <= 0 {
		c.writeTimeout = 30 * time.Second
	}
	if c.identityHeader == "" {
		c.identityHeader = "x-firebase-uid"
	}
	if c.httpClient == nil {
		// No client-level timeout; each call carries its own deadline.
		c.httpClient = &http.Client{}
	}
	if cfg.Tokens != nil && auth.ShouldUseIdentityToken(c.baseURL) {
		c.tokens = cfg.Tokens
	}
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker("upstream-"+cfg.Name, cfg.Breaker)
	}
	return c, nil
}

// Name returns the service label.
func (c *Client) Name() string { return c.name }

// BaseURL returns the service base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Do performs req.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.breaker == nil {
		return c.do(ctx, req)
	}

	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.do(ctx, req)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(c.breaker.Name(), "rejected")
		logging.Ctx(ctx).Warn().Str("service", c.name).Msg("Circuit breaker rejected upstream call")
		return nil, fmt.Errorf("%w: %s service circuit open", ErrUnreachable, c.name)
	case err != nil && countsAsFailure(err):
		metrics.RecordCircuitBreakerRequest(c.breaker.Name(), "failure")
	default:
		metrics.RecordCircuitBreakerRequest(c.breaker.Name(), "success")
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.writeTimeout
		if method == http.MethodGet || method == http.MethodHead {
			timeout = c.readTimeout
		}
	}

	// Client disconnects do not abort in-flight upstream work.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	httpReq, err := c.newHTTPRequest(callCtx, method, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, method, req.Path, start, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, c.transportError(ctx, method, req.Path, start, err)
	}
	duration := time.Since(start)
	if int64(len(body)) > c.maxBodyBytes {
		metrics.RecordUpstreamRequest(c.name, method, 0, "too_large", duration)
		logging.Ctx(ctx).Error().
			Str("service", c.name).
			Str("method", method).
			Str("path", req.Path).
			Int64("limit", c.maxBodyBytes).
			Msg("Upstream response exceeds size limit")
		return nil, fmt.Errorf("%w: %s service response over %d bytes", ErrResponseTooLarge, c.name, c.maxBodyBytes)
	}
	metrics.RecordUpstreamRequest(c.name, method, httpResp.StatusCode, "", duration)

	logging.Ctx(ctx).Debug().
		Str("service", c.name).
		Str("method", method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Dur("duration", duration).
		Msg("Upstream call")

	if httpResp.StatusCode >= http.StatusBadRequest {
		ue := newError(c.name, httpResp.StatusCode, body)
		logging.Ctx(ctx).Warn().
			Str("service", c.name).
			Str("path", req.Path).
			Int("status", ue.StatusCode).
			Str("detail", truncate(ue.Detail, 500)).
			Msg("Upstream service returned error")
		return nil, ue
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		ETag:       httpResp.Header.Get("ETag"),
		Location:   httpResp.Header.Get("Location"),
		Header:     httpResp.Header,
	}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, method string, req *Request) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case json.RawMessage:
		body = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode %s request body: %w", c.name, err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.name, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Identity != "" {
		httpReq.Header.Set(c.identityHeader, req.Identity)
	}
	if req.IfNoneMatch != "" {
		httpReq.Header.Set("If-None-Match", req.IfNoneMatch)
	}
	if rid := logging.RequestIDFromContext(ctx); rid != "" {
		httpReq.Header.Set("X-Request-ID", rid)
	}

	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx, c.baseURL)
		if err != nil {
			// The call proceeds unauthenticated; the service decides.
			logging.Ctx(ctx).Warn().Err(err).Str("service", c.name).Msg("Service identity token unavailable")
		} else {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return httpReq, nil
}

// transportError classifies a failed round trip and records it.
func (c *Client) transportError(ctx context.Context, method, path string, start time.Time, err error) error {
	outcome := "unreachable"
	wrapped := fmt.Errorf("%w: %s service: %v", ErrUnreachable, c.name, err)

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		outcome = "timeout"
		wrapped = fmt.Errorf("%w: %s service", ErrUpstreamTimeout, c.name)
	}
	metrics.RecordUpstreamRequest(c.name, method, 0, outcome, time.Since(start))

	logging.Ctx(ctx).Error().Err(err).
		Str("service", c.name).
		Str("method", method).
		Str("path", path).
		Str("outcome", outcome).
		Msg("Upstream call failed")
	return wrapped
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
