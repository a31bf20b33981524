// Package upstream wraps outbound HTTP calls to third party data providers with a rate
// limiter, a circuit breaker, bounded retries and a per attempt timeout. Every error it
// returns is a *types.Failure.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
	"github.com/FACorreiaa/loci-safety-api/pkg/observability"
	"github.com/FACorreiaa/loci-safety-api/pkg/resilience"
)

const maxErrorBody = 512

type Config struct {
	Source        string
	Timeout       time.Duration
	Retries       int
	RetryDelay    time.Duration
	RatePerSecond float64
	Burst         int
	Breaker       resilience.BreakerConfig
}

type Client struct {
	source     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.RatePerSecond))
	}

	source := cfg.Source
	breaker := resilience.NewCircuitBreaker(cfg.Breaker).OnStateChange(func(open bool) {
		observability.SetCircuitOpen(source, open)
		logger.Warn("upstream circuit state changed", slog.String("source", source), slog.Bool("open", open))
	})

	return &Client{
		source:     source,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		breaker:    breaker,
		timeout:    cfg.Timeout,
		retries:    max(0, cfg.Retries),
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// Source names the provider in failures and metrics.
func (c *Client) Source() string { return c.source }

// BreakerState exposes the circuit state for readiness reporting.
func (c *Client) BreakerState() string { return c.breaker.State() }

// GetJSON issues a GET to rawURL and decodes a 200 response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	return c.do(ctx, http.MethodGet, rawURL, header, nil, out)
}

// PostJSON encodes in as the request body of a POST to rawURL and decodes a 200 response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return locitypes.NewFailure(c.source, locitypes.FailureTransport, "failed to encode request", err)
	}
	return c.do(ctx, http.MethodPost, rawURL, header, body, out)
}

func (c *Client) do(ctx context.Context, method, rawURL string, header http.Header, body []byte, out any) error {
	l := c.logger.With(slog.String("source", c.source), slog.String("http_method", method))

	if err := c.limiter.Wait(ctx); err != nil {
		observability.RecordUpstreamFetch(c.source, string(locitypes.FailureRateLimited))
		return locitypes.NewFailure(c.source, locitypes.FailureRateLimited, "local rate limit", err)
	}

	if !c.breaker.Allow() {
		observability.RecordUpstreamFetch(c.source, string(locitypes.FailureUnavailable))
		return locitypes.NewFailure(c.source, locitypes.FailureUnavailable, "circuit open", nil)
	}

	// One deadline covers every attempt and backoff, so a hung provider costs at most timeout.
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := resilience.Retry(fetchCtx, c.retries+1, c.retryDelay, retryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.attempt(ctx, method, rawURL, header, body, out)
	})

	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		// The caller went away; that says nothing about the provider.
		c.breaker.Abandon()
		return locitypes.NewFailure(c.source, locitypes.FailureTransport, "request cancelled", err)
	}
	c.breaker.RecordResult(err == nil)

	if err != nil {
		var f *locitypes.Failure
		switch {
		case errors.As(err, &f):
		case isTimeout(err):
			f = locitypes.NewFailure(c.source, locitypes.FailureTimeout, "request timed out", err)
		default:
			f = locitypes.NewFailure(c.source, locitypes.FailureTransport, "request failed", err)
		}
		observability.RecordUpstreamFetch(c.source, string(f.Kind))
		l.WarnContext(ctx, "upstream fetch failed", slog.String("kind", string(f.Kind)), slog.Any("error", err))
		return f
	}
	observability.RecordUpstreamFetch(c.source, "ok")
	return nil
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, header http.Header, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return locitypes.NewFailure(c.source, locitypes.FailureTransport, "failed to build request", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		redactURL(err)
		if isTimeout(err) {
			return locitypes.NewFailure(c.source, locitypes.FailureTimeout, "request timed out", err)
		}
		return locitypes.NewFailure(c.source, locitypes.FailureTransport, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return locitypes.NewFailure(c.source, locitypes.FailureAuth, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return locitypes.NewFailure(c.source, locitypes.FailureRateLimited, "provider rate limit exceeded", nil)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return locitypes.NewFailure(c.source, locitypes.FailureStatus,
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(msg)), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return locitypes.NewFailure(c.source, locitypes.FailureTimeout, "response body timed out", err)
		}
		return locitypes.NewFailure(c.source, locitypes.FailureMalformed, "failed to decode response", err)
	}
	return nil
}

func retryable(err error) bool {
	var f *locitypes.Failure
	if !errors.As(err, &f) {
		return false
	}
	return f.Kind == locitypes.FailureTransport
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// redactURL hides credentials passed as query parameters from transport error messages.
func redactURL(err error) {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		return
	}
	q := u.Query()
	for _, name := range []string{"key", "apikey", "api_key"} {
		if q.Has(name) {
			q.Set(name, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	ue.URL = u.String()
}
