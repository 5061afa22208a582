package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	pkgerrs "github.com/threadsdev/go-threads/pkg/errors"
	"golang.org/x/time/rate"
)

// Client manages communication with the Threads graph API. It is safe for
// use by multiple goroutines; the rate limiter serializes nothing beyond
// the token-bucket wait.
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string
	token     string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// RateLimitConfig controls how requests are throttled before reaching the
// Threads API. Threads enforces a rolling publishing quota per user; the
// limiter keeps bursty callers under it.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

const (
	DefaultRequestsPerMinute = 60
	DefaultRateLimitBurst    = 10
	secondsPerMinute         = 60.0
)

// NewClient returns a transport bound to a single access token.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, accessToken, baseURL, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "parse base URL", Err: err}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		client:    httpClient,
		BaseURL:   parsedURL,
		UserAgent: userAgent,
		token:     accessToken,
		limiter:   buildLimiter(*rateCfg),
		logger:    logger,
	}, nil
}

// NewRequest creates an API request for a path relative to the client's
// base URL, with params encoded as the query string and the access token
// injected as a bearer header.
func (c *Client) NewRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	u, err := c.BaseURL.Parse(path)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "build request URL", Err: err}
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "build request", Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.UserAgent)

	return req, nil
}

// Do sends an API request and JSON-decodes the response into v, which may
// be nil when the caller does not need the body. Non-2xx responses are
// returned as *pkgerrs.APIError with the graph error envelope decoded.
func (c *Client) Do(req *http.Request, v any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return &pkgerrs.ClientError{Operation: "rate limit wait", Err: err}
	}

	c.logger.Debug("threads api request", "method", req.Method, "path", req.URL.Path)

	resp, err := c.client.Do(req)
	if err != nil {
		return &pkgerrs.ClientError{Operation: fmt.Sprintf("%s %s", req.Method, req.URL.Path), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &pkgerrs.ClientError{Operation: "read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := DecodeAPIError(resp.StatusCode, body)
		c.logger.Debug("threads api error", "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	if v != nil {
		if err := UnmarshalResponse(body, v); err != nil {
			return err
		}
	}

	return nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / secondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return rate.NewLimiter(limitPerSecond, burst)
}
