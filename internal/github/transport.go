package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RetryConfig controls how the transport retries transient provider errors.
type RetryConfig struct {
	MaxRetries        int           // Retries after the first attempt (default: 3)
	InitialBackoff    time.Duration // Delay before the first retry (default: 1s)
	MaxBackoff        time.Duration // Upper bound on a single delay (default: 30s)
	BackoffMultiplier float64       // Growth factor between delays (default: 2.0)

	RequestsPerSecond float64 // Sustained request rate, 0 = unlimited (default: 10)
	Burst             int     // Requests allowed above the sustained rate (default: 10)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		RequestsPerSecond: 10,
		Burst:             10,
	}
}

// RetryTransport throttles outgoing requests and retries rate-limited,
// server-side and network failures with exponential backoff.
type RetryTransport struct {
	base    http.RoundTripper
	cfg     RetryConfig
	limiter *rate.Limiter
	logger  *slog.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryTransport wraps base (http.DefaultTransport when nil).
func NewRetryTransport(base http.RoundTripper, cfg RetryConfig, logger *slog.Logger) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &RetryTransport{
		base:    base,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	backoff := t.cfg.InitialBackoff

	for attempt := 0; ; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		attemptReq, err := rewind(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := t.base.RoundTrip(attemptReq)
		retry, wait := t.classify(ctx, resp, err)
		if !retry || attempt >= t.cfg.MaxRetries {
			return resp, err
		}

		if wait <= 0 {
			wait = backoff
		}
		if t.cfg.MaxBackoff > 0 && wait > t.cfg.MaxBackoff {
			wait = t.cfg.MaxBackoff
		}

		reason := "network error"
		if resp != nil {
			reason = resp.Status
			drain(resp)
		}
		t.logger.Debug("retrying provider request",
			"method", req.Method,
			"url", req.URL.String(),
			"attempt", attempt+1,
			"reason", reason,
			"wait", wait,
		)

		if err := t.sleep(ctx, wait); err != nil {
			return nil, err
		}
		backoff = time.Duration(float64(backoff) * t.cfg.BackoffMultiplier)
	}
}

// classify decides whether a response or error is transient. A non-zero wait
// is the provider's own Retry-After hint.
func (t *RetryTransport) classify(ctx context.Context, resp *http.Response, err error) (bool, time.Duration) {
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, 0
		}
		return true, 0
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, retryAfter(resp)
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return true, retryAfter(resp)
	case resp.StatusCode >= 500:
		return true, retryAfter(resp)
	}
	return false, 0
}

func retryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// rewind returns a request whose body can be sent again.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 || req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("cannot retry %s %s: request body is not replayable", req.Method, req.URL)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
