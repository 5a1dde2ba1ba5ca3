package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/logger"
)

// maxResponseBody caps how much of a sidecar response is read.
const maxResponseBody = 64 << 20

// Client calls one sidecar.
type Client struct {
	cfg     Config
	service string
	http    *http.Client
	log     *logger.Logger
	breaker *breaker
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithService names the sidecar in errors and logs.
func WithService(name string) Option {
	return func(c *Client) { c.service = name }
}

// New validates cfg and creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:     cfg,
		service: "sidecar",
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logger.Get("httpclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker(cfg.BreakerFailures, cfg.BreakerCooldown)
	if c.breaker != nil {
		c.breaker.onChange = func(from, to BreakerState) {
			c.log.Warn("sidecar circuit changed state", logger.Fields(
				logger.FieldBackend, c.service,
				"from", from.String(),
				"to", to.String(),
			))
		}
	}
	return c, nil
}

// BreakerState reports the circuit state of the sidecar.
func (c *Client) BreakerState() BreakerState { return c.breaker.current() }

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// PostMultipart posts body to path and returns the 2xx response body.
func (c *Client) PostMultipart(ctx context.Context, path string, body *MultipartBody) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, func() (io.Reader, string, error) {
		return body.encode()
	})
}

// Get issues a GET to path and returns the 2xx response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Health reports whether GET path answers 2xx. It does not retry.
func (c *Client) Health(ctx context.Context, path string) error {
	_, err := c.once(ctx, http.MethodGet, path, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body func() (io.Reader, string, error)) ([]byte, error) {
	if !c.breaker.allow() {
		return nil, errors.ServiceUnavailable(c.service).WithDetail("circuit", BreakerOpen.String())
	}
	out, err := c.retry(ctx, method, path, body)
	switch {
	case ctx.Err() != nil:
		c.breaker.abort()
	case err != nil:
		appErr, ok := errors.AsAppError(err)
		c.breaker.record(ok && appErr.Retryable)
	default:
		c.breaker.record(false)
	}
	return out, err
}

func (c *Client) retry(ctx context.Context, method, path string, body func() (io.Reader, string, error)) ([]byte, error) {
	var out []byte
	attempt := 0
	op := func() error {
		attempt++
		data, err := c.once(ctx, method, path, body)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok && appErr.Retryable {
				return err
			}
			return backoff.Permanent(err)
		}
		out = data
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("sidecar call failed, retrying", logger.Fields(
			logger.FieldBackend, c.service,
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			logger.FieldError, err.Error(),
		))
	}
	if err := backoff.RetryNotify(op, c.policy(ctx), notify); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	var b backoff.BackOff = &backoff.StopBackOff{}
	if c.cfg.MaxRetries > 0 {
		b = backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries))
	}
	return backoff.WithContext(b, ctx)
}

func (c *Client) once(ctx context.Context, method, path string, body func() (io.Reader, string, error)) ([]byte, error) {
	var reader io.Reader
	var contentType string
	if body != nil {
		var err error
		if reader, contentType, err = body(); err != nil {
			return nil, errors.Internal(fmt.Errorf("encode request: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("build request: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(c.service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, classifyTransport(c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(c.service, resp.StatusCode, data)
	}
	return data, nil
}
