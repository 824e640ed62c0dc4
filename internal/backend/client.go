package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/session"
)

const (
	DefaultTimeout = 15 * time.Second
	maxBodyBytes   = 10 << 20
)

// Metrics receives one observation per call; class is empty on success.
type Metrics interface {
	ObserveBackend(method string, status int, d time.Duration, class string)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the commerce REST API on behalf of the browser session bound to ctx.
type Client struct {
	baseURL  string
	http     *http.Client
	notifier notifications.Notifier
	metrics  Metrics
	log      *slog.Logger
}

type Option func(*Client)

func WithNotifier(n notifications.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTransport replaces the traced default transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		notifier: notifications.NewLogNotifier(nil),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Request performs one call. body is JSON-encoded, or must be a *Multipart when isFormData is set.
// A bearer token is attached when token is non-empty. Failures are returned as *Error
// after the error toast has been queued.
func (c *Client) Request(ctx context.Context, method, path string, body any, token string, isFormData bool) (json.RawMessage, error) {
	method = strings.ToUpper(method)

	req, err := c.newRequest(ctx, method, path, body, token, isFormData)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, 0, start, classifyTransport(err))
		return nil, c.fail(ctx, token, &Error{Message: transportMessage(err), Err: err})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe(method, resp.StatusCode, start, "read")
		return nil, c.fail(ctx, token, &Error{Status: resp.StatusCode, Message: transportMessage(err), Err: err})
	}

	parsed := decodeObject(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       parsed,
		}
		e.Message = ResolveMessage(parsed, e.StatusText)
		c.observe(method, resp.StatusCode, start, classifyStatus(resp.StatusCode))
		return nil, c.fail(ctx, token, e)
	}

	c.observe(method, resp.StatusCode, start, "")

	if isMutating(method) {
		if msg := successMessage(parsed); msg != "" {
			c.toast(ctx, notifications.LevelSuccess, msg)
		}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(raw), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, token string, isFormData bool) (*http.Request, error) {
	var (
		reader      io.Reader
		contentType = "application/json"
	)

	switch {
	case isFormData:
		mp, ok := body.(*Multipart)
		if !ok || mp == nil {
			return nil, fmt.Errorf("form data body must be *backend.Multipart, got %T", body)
		}
		r, ct, err := mp.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode multipart: %w", err)
		}
		reader, contentType = r, ct
	case body != nil:
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// fail queues the error toast. A 401 on an authenticated call forces a logout of the
// bound session; only the call that actually clears it shows the expiry notice.
func (c *Client) fail(ctx context.Context, token string, e *Error) error {
	if e.Unauthorized() && token != "" {
		if st, ok := session.FromContext(ctx); ok {
			cleared, err := st.Logout(ctx)
			if err != nil {
				c.log.ErrorContext(ctx, "forced logout failed", "err", err)
			}
			if cleared {
				c.log.InfoContext(ctx, "session expired by backend", "status", e.Status)
				c.toast(ctx, notifications.LevelError, SessionExpiredMessage)
			}
			return e
		}
		c.toast(ctx, notifications.LevelError, SessionExpiredMessage)
		return e
	}

	c.toast(ctx, notifications.LevelError, e.Message)
	return e
}

func (c *Client) toast(ctx context.Context, level notifications.Level, msg string) {
	if err := notifications.Replace(ctx, c.notifier, notifications.NewToast(level, msg)); err != nil {
		c.log.WarnContext(ctx, "toast not delivered", "err", err)
	}
}

func (c *Client) observe(method string, status int, start time.Time, class string) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveBackend(method, status, time.Since(start), class)
}

func (c *Client) Get(ctx context.Context, path, token string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, path, nil, token, false)
}

func (c *Client) Post(ctx context.Context, path string, body any, token string) (json.RawMessage, error) {
	_, isForm := body.(*Multipart)
	return c.Request(ctx, http.MethodPost, path, body, token, isForm)
}

func (c *Client) Put(ctx context.Context, path string, body any, token string) (json.RawMessage, error) {
	_, isForm := body.(*Multipart)
	return c.Request(ctx, http.MethodPut, path, body, token, isForm)
}

func (c *Client) Patch(ctx context.Context, path string, body any, token string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPatch, path, body, token, false)
}

func (c *Client) Delete(ctx context.Context, path, token string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodDelete, path, nil, token, false)
}

func decodeObject(raw []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out."
	}
	return err.Error()
}

func classifyTransport(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	return "transport"
}

func classifyStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status >= 500:
		return "5xx"
	default:
		return "4xx"
	}
}
