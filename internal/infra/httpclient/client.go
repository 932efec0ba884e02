// Package httpclient issues resilient JSON GET requests against upstream APIs.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"telegram-weather-bot/internal/infra/logging"
	"telegram-weather-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	maxBodyBytes = 4 << 20
	jitterRatio  = 0.1
)

type Config struct {
	Timeout          time.Duration
	MaxRetries       int // total attempts, minimum 1
	InitialDelay     time.Duration
	BackoffFactor    float64
	MaxDelay         time.Duration
	MaxConnsPerHost  int
	BreakerThreshold uint32 // consecutive failures that open the breaker
	BreakerCooldown  time.Duration
}

// StatusError is a non-2xx response. 5xx responses are transient, the rest terminal.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Transient() bool { return e.StatusCode >= http.StatusInternalServerError }

type Option func(*Client)

// WithSleeper replaces the backoff wait, mainly for tests.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithJitterSource replaces the random source; fn must return values in [0,1).
func WithJitterSource(fn func() float64) Option {
	return func(c *Client) { c.jitter = fn }
}

// Client owns one pooled transport for the process lifetime. The pool is
// created on first use and recreated after Close.
type Client struct {
	cfg     Config
	log     *zerolog.Logger
	breaker *gobreaker.CircuitBreaker
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func() float64

	mu   sync.Mutex
	http *http.Client
}

func New(cfg Config, logger *zerolog.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 2
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = 100
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	l := logger.With().Str("component", "http_client").Logger()
	c := &Client{
		cfg:    cfg,
		log:    &l,
		sleep:  sleepCtx,
		jitter: rand.Float64,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather-http",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) session() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxConnsPerHost = c.cfg.MaxConnsPerHost
		tr.MaxIdleConnsPerHost = c.cfg.MaxConnsPerHost
		c.http = &http.Client{Transport: tr}
	}
	return c.http
}

// Close releases pooled connections. Safe to call when no pool exists.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		return
	}
	c.http.CloseIdleConnections()
	c.http = nil
}

// FetchJSON is FetchJSONWith using the configured timeout and attempt count.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	return c.FetchJSONWith(ctx, rawURL, params, c.cfg.Timeout, c.cfg.MaxRetries, out)
}

// FetchJSONWith GETs rawURL with params and decodes the body into out.
// Transport failures and 5xx responses are retried with exponential backoff up
// to maxRetries attempts in total; any other status returns *StatusError at once.
func (c *Client) FetchJSONWith(ctx context.Context, rawURL string, params url.Values, timeout time.Duration, maxRetries int, out any) error {
	target, err := buildURL(rawURL, params)
	if err != nil {
		return err
	}
	safe := logging.SafeURL(target)
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	attempt := 1
	for ; attempt <= maxRetries; attempt++ {
		body, err := c.do(ctx, target, safe, timeout)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				metrics.IncWeatherHTTPRequest("decode_error")
				return fmt.Errorf("decode response from %s: %w", safe, err)
			}
			metrics.IncWeatherHTTPRequest("ok")
			return nil
		}
		lastErr = err

		if !retryable(err) {
			var se *StatusError
			if errors.As(err, &se) {
				metrics.IncWeatherHTTPRequest("client_error")
				c.log.Debug().Int("status", se.StatusCode).Str("url", safe).Msg("terminal client error")
				return err
			}
			break
		}
		if ctx.Err() != nil || attempt == maxRetries {
			break
		}

		delay := c.backoff(attempt)
		c.log.Warn().Err(err).Str("url", safe).Int("attempt", attempt).Int("max_attempts", maxRetries).
			Dur("backoff", delay).Msg("transient failure, retrying")
		metrics.IncWeatherHTTPRetry()
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	outcome := "exhausted"
	if errors.Is(lastErr, gobreaker.ErrOpenState) || errors.Is(lastErr, gobreaker.ErrTooManyRequests) {
		outcome = "breaker_open"
	}
	metrics.IncWeatherHTTPRequest(outcome)
	c.log.Error().Err(lastErr).Str("url", safe).Int("attempts", attempt).Msg("request failed")
	return fmt.Errorf("get %s failed after %d attempt(s): %w", safe, attempt, lastErr)
}

type response struct {
	status int
	body   []byte
}

// do runs one attempt through the breaker; only transport errors and 5xx count as breaker failures.
func (c *Client) do(ctx context.Context, target, safe string, timeout time.Duration) ([]byte, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(actx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.session().Do(req)
		metrics.ObserveWeatherHTTPAttempt(time.Since(start))
		if err != nil {
			var ue *url.Error
			if errors.As(err, &ue) {
				ue.URL = safe
			}
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: safe, Body: snippet(body)}
		}
		return &response{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		return nil, err
	}
	r := res.(*response)
	if r.status < 200 || r.status >= 300 {
		return nil, &StatusError{StatusCode: r.status, URL: safe, Body: snippet(r.body)}
	}
	return r.body, nil
}

// backoff returns the wait after the given failed attempt (1-based), with ±10% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.cfg.InitialDelay) * math.Pow(c.cfg.BackoffFactor, float64(attempt-1))
	if c.cfg.MaxDelay > 0 && d > float64(c.cfg.MaxDelay) {
		d = float64(c.cfg.MaxDelay)
	}
	d *= 1 + (c.jitter()*2-1)*jitterRatio
	return time.Duration(d)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func buildURL(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func snippet(b []byte) string {
	const n = 256
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
