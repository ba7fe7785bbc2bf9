// Package client provides the dashboard HTTP client with retry, timeouts and
// bearer-token auth.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aiodash/aiodash/internal/logging"
	"github.com/aiodash/aiodash/internal/metrics"
	"github.com/aiodash/aiodash/pkg/retry"
)

// DefaultTimeout bounds every call that does not override it.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 32 << 20

// TokenSource yields the bearer token for a request. An empty token means
// the request is sent unauthenticated.
type TokenSource interface {
	Token() (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() (string, error)

func (f TokenSourceFunc) Token() (string, error) { return f() }

// StaticToken is a fixed token.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// Client issues authenticated calls against the dashboard backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	retryConfig retry.Config
	limiter     *rate.Limiter
	userAgent   string

	mu             sync.RWMutex
	tokens         TokenSource
	online         bool
	lastPing       time.Time
	onUnauthorized func(token string)
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config // applied to GET only
	Tokens      TokenSource
	UserAgent   string

	// RateLimit caps outgoing requests per second (0 = unlimited).
	RateLimit float64
	RateBurst int

	// Transport overrides the default transport, mostly for tests.
	Transport http.RoundTripper
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Transport: transport},
		timeout:     cfg.Timeout,
		retryConfig: cfg.RetryConfig,
		userAgent:   cfg.UserAgent,
		tokens:      cfg.Tokens,
		online:      true,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource replaces the token source.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized registers fn to run when a request that carried a token is
// answered with 401. fn receives the token that was rejected.
func (c *Client) OnUnauthorized(fn func(token string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// Option customizes a single call.
type Option func(*callOptions)

type callOptions struct {
	timeout time.Duration
	route   string
	noAuth  bool
}

// WithTimeout overrides the client timeout for one call.
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) { o.timeout = d }
}

// WithRoute sets the low-cardinality route label used in metrics.
func WithRoute(route string) Option {
	return func(o *callOptions) { o.route = route }
}

// WithoutAuth sends the call without an Authorization header.
func WithoutAuth() Option {
	return func(o *callOptions) { o.noAuth = true }
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	form   *Form
	opts   callOptions
}

func newRequest(method, path string, query url.Values, opts []Option) *request {
	r := &request{method: method, path: path, query: query}
	for _, opt := range opts {
		opt(&r.opts)
	}
	if r.opts.route == "" {
		r.opts.route = path
	}
	return r
}

func (r *request) encode() (io.Reader, string, error) {
	switch {
	case r.form != nil:
		body, contentType := r.form.reader()
		return body, contentType, nil
	case r.body != nil:
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
	return nil, "", nil
}

// Get issues a GET and decodes the response into out. Network errors,
// timeouts and 5xx responses are retried per the retry config.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any, opts ...Option) error {
	return c.do(ctx, newRequest(http.MethodGet, path, query, opts), out)
}

// Post issues a POST with an optional JSON body. Never retried.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any, opts ...Option) error {
	r := newRequest(http.MethodPost, path, query, opts)
	r.body = body
	return c.do(ctx, r, out)
}

// Put issues a PUT with an optional JSON body. Never retried.
func (c *Client) Put(ctx context.Context, path string, query url.Values, body, out any, opts ...Option) error {
	r := newRequest(http.MethodPut, path, query, opts)
	r.body = body
	return c.do(ctx, r, out)
}

// Upload POSTs a multipart form. Never retried.
func (c *Client) Upload(ctx context.Context, path string, form *Form, out any, opts ...Option) error {
	r := newRequest(http.MethodPost, path, nil, opts)
	r.form = form
	return c.do(ctx, r, out)
}

func (c *Client) do(ctx context.Context, r *request, out any) error {
	if r.method != http.MethodGet {
		return retry.Unwrap(c.attempt(ctx, r, out))
	}

	cfg := c.retryConfig
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		metrics.RecordRetry(r.opts.route)
		logging.WithContext(ctx).Debug("retrying request",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return retry.Unwrap(retry.Do(ctx, cfg, func() error {
		return c.attempt(ctx, r, out)
	}))
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// attempt performs one round trip. Failures worth retrying come back
// wrapped with retry.Retryable.
func (c *Client) attempt(ctx context.Context, r *request, out any) error {
	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)
	log := logging.WithContext(ctx)

	fail := func(kind Kind, status int, msg string, err error) *Error {
		return &Error{
			Kind:      kind,
			Status:    status,
			Message:   msg,
			Method:    r.method,
			Path:      r.path,
			RequestID: requestID,
			Err:       err,
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	timeout := c.timeout
	if r.opts.timeout > 0 {
		timeout = r.opts.timeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, contentType, err := r.encode()
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(actx, r.method, c.url(r.path, r.query), body)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			rc.Close()
		}
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	sent, err := c.applyAuth(req, r.opts.noAuth)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			rc.Close()
		}
		return fmt.Errorf("read token: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordHTTPRequest(r.method, r.opts.route, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.setOnline(false)
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			return retry.Retryable(fail(KindTimeout, 0, fmt.Sprintf("request timed out after %s", timeout), err))
		}
		return retry.Retryable(fail(KindNetwork, 0, "network error", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	duration := time.Since(start)
	metrics.RecordHTTPRequest(r.method, r.opts.route, resp.StatusCode, duration)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			return retry.Retryable(fail(KindTimeout, resp.StatusCode, fmt.Sprintf("request timed out after %s", timeout), err))
		}
		return retry.Retryable(fail(KindNetwork, resp.StatusCode, "read response", err))
	}
	c.setOnline(true)

	log.Debug("request completed",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := fail(KindHTTP, resp.StatusCode, extractMessage(data, resp.StatusCode), nil)
		if resp.StatusCode == http.StatusUnauthorized && sent != "" {
			log.Info("authenticated request rejected with 401")
			c.unauthorized(sent)
		}
		if resp.StatusCode >= 500 {
			return retry.Retryable(e)
		}
		return e
	}

	payload, ok := unwrapEnvelope(data)
	if !ok {
		return fail(KindAPI, resp.StatusCode, extractMessage(data, 0), nil)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fail(KindDecode, resp.StatusCode, "invalid response body", err)
	}
	return nil
}

// unwrapEnvelope returns the "data" member of a {success, data, error}
// envelope, or the whole body when it is not enveloped. ok is false when the
// envelope reports success=false.
func unwrapEnvelope(body []byte) (payload []byte, ok bool) {
	if len(bytes.TrimSpace(body)) == 0 || !gjson.ValidBytes(body) {
		return body, true
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return body, true
	}
	success := root.Get("success")
	switch success.Type {
	case gjson.False:
		return nil, false
	case gjson.True:
		if data := root.Get("data"); data.Exists() {
			return []byte(data.Raw), true
		}
		return nil, true
	}
	return body, true
}

// applyAuth sets the bearer header and returns the token it sent, or "" when
// the request goes out unauthenticated.
func (c *Client) applyAuth(req *http.Request, skip bool) (string, error) {
	if skip {
		return "", nil
	}
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return "", nil
	}
	token, err := ts.Token()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", nil
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return token, nil
}

func (c *Client) unauthorized(token string) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(token)
	}
}
