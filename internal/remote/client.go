// Package remote is the client for the order-management REST API: token
// lifecycle, sequential pagination and bounded retry on authorization
// failure. It knows nothing about what the records mean.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"orderrelay/internal/metrics"
	"orderrelay/internal/model"
)

const (
	DefaultBaseURL    = "https://api.remonline.ru/"
	DefaultPageSize   = 50
	DefaultMaxRetries = 5
	DefaultTimeout    = 5 * time.Second

	maxBodyBytes = 16 << 20
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the API root; resource paths are appended to it.
	BaseURL string
	// APIKey is the long-lived credential exchanged for tokens.
	APIKey string
	// PageSize must match the server's records-per-page.
	PageSize int
	// MaxRetries bounds token renewals per request. Zero disables retry.
	MaxRetries int
	// Timeout applies to every HTTP request when HTTPClient is nil.
	Timeout time.Duration
	// RateRPS limits outgoing requests per second. Zero means unlimited.
	RateRPS   float64
	RateBurst int
	// HTTPClient is used for all requests. If nil, one is built from Timeout.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client owns the API token. All requests go through FetchAll or the
// typed helpers; the token is renewed and requests re-issued on 403.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	maxRetries int
	http       *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	validate   *validator.Validate

	mu       sync.RWMutex
	token    string
	renewals singleflight.Group
}

// New creates a Client. No request is made until the first fetch.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("remote: api key is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("remote: max retries must be >= 0, got %d", cfg.MaxRetries)
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("remote: invalid base url %q: %w", base, err)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.RateRPS > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), burst)
	}
	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		pageSize:   pageSize,
		maxRetries: cfg.MaxRetries,
		http:       httpClient,
		limiter:    limiter,
		logger:     logger,
		validate:   validator.New(),
	}, nil
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// RenewToken exchanges the API key for a fresh token and stores it.
// A non-200 status or success=false is reported as ErrAuthFailure; it is
// not retried here.
func (c *Client) RenewToken(ctx context.Context) (string, error) {
	const path = "token/new"
	if err := c.wait(ctx, path); err != nil {
		return "", err
	}
	form := url.Values{"api_key": {c.apiKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("remote: build renew request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.TokenRenewals.WithLabelValues("transport").Inc()
		return "", &ServiceError{Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode != http.StatusOK {
		metrics.TokenRenewals.WithLabelValues("rejected").Inc()
		c.logger.Error("token renewal failed", "status", resp.StatusCode, "body", truncate(body))
		return "", fmt.Errorf("%w: %s returned status %d", ErrAuthFailure, path, resp.StatusCode)
	}
	var tr model.TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		metrics.TokenRenewals.WithLabelValues("rejected").Inc()
		return "", fmt.Errorf("%w: decode %s response: %v", ErrAuthFailure, path, err)
	}
	if !tr.Success || tr.Token == "" {
		metrics.TokenRenewals.WithLabelValues("rejected").Inc()
		c.logger.Error("token renewal returned 200 without success")
		c.logger.Debug("token renewal response", "body", truncate(body))
		return "", fmt.Errorf("%w: %s returned success=false", ErrAuthFailure, path)
	}

	c.mu.Lock()
	c.token = tr.Token
	c.mu.Unlock()
	metrics.TokenRenewals.WithLabelValues("ok").Inc()
	c.logger.Debug("api token renewed")
	return tr.Token, nil
}

// renew replaces stale with a fresh token. Concurrent callers share one
// renewal, and a caller whose stale token was already replaced gets the
// current one without another round trip. The shared renewal is detached
// from the caller's cancellation; each caller stops waiting on its own ctx.
func (c *Client) renew(ctx context.Context, stale string) (string, error) {
	ch := c.renewals.DoChan("token", func() (any, error) {
		if cur := c.currentToken(); cur != "" && cur != stale {
			return cur, nil
		}
		return c.RenewToken(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// FetchAll fetches every page of path and returns the records in page
// order. Either all required pages are fetched or an error is returned.
func (c *Client) FetchAll(ctx context.Context, path string, filters url.Values) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for page := 1; ; page++ {
		p, err := c.fetchPage(ctx, path, filters, page)
		if err != nil {
			return nil, err
		}
		out = append(out, (*p.Data)...)
		if *p.Count <= page*c.pageSize {
			return out, nil
		}
		c.logger.Debug("fetching next page", "path", path, "page", page+1, "count", *p.Count)
	}
}

// fetchPage issues one logical page request, renewing the token and
// re-issuing the same request on 403 at most maxRetries times.
func (c *Client) fetchPage(ctx context.Context, path string, filters url.Values, page int) (model.Page[json.RawMessage], error) {
	token := c.currentToken()
	if token == "" {
		t, err := c.renew(ctx, "")
		if err != nil {
			return model.Page[json.RawMessage]{}, err
		}
		token = t
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		status, body, err := c.get(ctx, path, filters, page, token)
		if err != nil {
			return model.Page[json.RawMessage]{}, err
		}
		switch status {
		case http.StatusOK:
			return c.decodePage(path, body)
		case http.StatusForbidden:
			c.logger.Warn("api token rejected", "path", path, "page", page, "attempt", attempt+1)
			if attempt == c.maxRetries {
				continue
			}
			t, err := c.renew(ctx, token)
			if err != nil {
				return model.Page[json.RawMessage]{}, err
			}
			token = t
		default:
			return model.Page[json.RawMessage]{}, &ServiceError{Path: path, StatusCode: status, Body: truncate(body)}
		}
	}

	c.logger.Error("max retries reached", "path", path, "page", page, "max_retries", c.maxRetries)
	return model.Page[json.RawMessage]{}, fmt.Errorf("%w: %s page %d after %d attempts", ErrExhaustedRetries, path, page, c.maxRetries+1)
}

func (c *Client) get(ctx context.Context, path string, filters url.Values, page int, token string) (int, []byte, error) {
	if err := c.wait(ctx, path); err != nil {
		return 0, nil, err
	}
	q := url.Values{}
	for k, vs := range filters {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("token", token)
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("remote: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(path, "transport").Inc()
		// *url.Error quotes the full URL, token included
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return 0, nil, &ServiceError{Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(path, "transport").Inc()
		return 0, nil, &ServiceError{Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	metrics.RemoteRequests.WithLabelValues(path, outcome(resp.StatusCode)).Inc()
	c.logger.Debug("api request", "path", path, "filters", filters.Encode(), "page", page, "status", resp.StatusCode)
	return resp.StatusCode, body, nil
}

func (c *Client) decodePage(path string, body []byte) (model.Page[json.RawMessage], error) {
	var p model.Page[json.RawMessage]
	if err := json.Unmarshal(body, &p); err != nil {
		return p, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, path, err)
	}
	if err := c.validate.Struct(p); err != nil {
		return p, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, path, err)
	}
	return p, nil
}

func (c *Client) wait(ctx context.Context, path string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &ServiceError{Path: path, Err: err}
	}
	return nil
}

func outcome(status int) string {
	switch status {
	case http.StatusOK:
		return "ok"
	case http.StatusForbidden:
		return "forbidden"
	default:
		return "error"
	}
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
