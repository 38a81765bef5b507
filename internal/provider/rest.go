package provider

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

	"github.com/Digital-Shane/reelrunner/internal/ratelimit"
	"github.com/avast/retry-go/v4"
)

// RESTConfig configures a JSON REST client for one remote service.
type RESTConfig struct {
	Provider   string
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter

	// Authorize decorates every outgoing request with credentials.
	Authorize func(*http.Request)

	Attempts uint
	Delay    time.Duration
}

// Request describes a single call. At most one of Form or JSON is sent as body.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	JSON   any
}

// REST is a small JSON client shared by the Real-Debrid, Jellyfin and Tunarr
// integrations. Rate limited and unavailable responses are retried with
// exponential backoff. POST and PATCH calls are only retried when rate
// limited, since a failed or timed out call may still have been applied.
type REST struct {
	provider  string
	baseURL   string
	client    *http.Client
	limiter   *ratelimit.Limiter
	authorize func(*http.Request)
	attempts  uint
	delay     time.Duration
}

// NewREST creates a REST client with defaults applied.
func NewREST(cfg RESTConfig) *REST {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = time.Second
	}
	return &REST{
		provider:  cfg.Provider,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    client,
		limiter:   cfg.Limiter,
		authorize: cfg.Authorize,
		attempts:  attempts,
		delay:     delay,
	}
}

// BaseURL returns the configured service root.
func (c *REST) BaseURL() string {
	return c.baseURL
}

// Do performs req and decodes a JSON response into out when out is non-nil.
func (c *REST) Do(ctx context.Context, req Request, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%s base url not configured", c.provider)
	}

	return retry.Do(
		func() error {
			return c.once(ctx, req, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(c.backoff),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var provErr *ProviderError
			if !errors.As(err, &provErr) || !provErr.Retry {
				return false
			}
			return idempotent(req.Method) || provErr.Code == CodeRateLimited
		}),
	)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch:
		return false
	}
	return true
}

// backoff honours RetryAfter hints, falling back to exponential delay.
func (c *REST) backoff(n uint, err error, cfg *retry.Config) time.Duration {
	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.RetryAfter > 0 {
		hinted := time.Duration(provErr.RetryAfter) * time.Second
		return min(hinted, c.delay*10)
	}
	return retry.BackOffDelay(n, err, cfg)
}

func (c *REST) once(ctx context.Context, req Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ProviderError{
			Provider:   c.provider,
			Code:       CodeUnavailable,
			Message:    fmt.Sprintf("%s request failed: %v", strings.ToUpper(c.provider), err),
			Retry:      true,
			RetryAfter: 2,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusError(c.provider, resp.StatusCode, string(body))
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.provider, err)
	}
	return nil
}

func (c *REST) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.provider, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.authorize != nil {
		c.authorize(httpReq)
	}
	return httpReq, nil
}
