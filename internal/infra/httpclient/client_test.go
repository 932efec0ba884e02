//go:build !integration

package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// recordingSleeper captures backoff delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(cfg Config, s *recordingSleeper) *Client {
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = 2
	}
	return New(cfg, newTestLogger(),
		WithSleeper(s.Sleep),
		WithJitterSource(func() float64 { return 0.5 }), // neutral jitter
	)
}

type payload struct {
	OK   bool   `json:"ok"`
	Echo string `json:"echo"`
}

func TestFetchJSON_Retry(t *testing.T) {
	t.Run("transient failures then success", func(t *testing.T) {
		// --- Arrange ---
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&hits, 1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()
		sleeper := &recordingSleeper{}
		c := newTestClient(Config{MaxRetries: 3}, sleeper)
		defer c.Close()

		// --- Act ---
		var out payload
		err := c.FetchJSON(context.Background(), srv.URL, nil, &out)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if !out.OK {
			t.Error("expected decoded payload")
		}
		if got := atomic.LoadInt32(&hits); got != 3 {
			t.Errorf("expected 3 attempts, got %d", got)
		}
		if len(sleeper.delays) != 2 {
			t.Fatalf("expected 2 backoff sleeps, got %d", len(sleeper.delays))
		}
		if sleeper.delays[0] != 100*time.Millisecond || sleeper.delays[1] != 200*time.Millisecond {
			t.Errorf("expected exponential delays 100ms,200ms, got %v", sleeper.delays)
		}
	})

	t.Run("404 is never retried", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			http.Error(w, `{"message":"city not found"}`, http.StatusNotFound)
		}))
		defer srv.Close()
		sleeper := &recordingSleeper{}
		c := newTestClient(Config{MaxRetries: 5}, sleeper)

		err := c.FetchJSON(context.Background(), srv.URL, nil, &payload{})

		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 StatusError, got %v", err)
		}
		if atomic.LoadInt32(&hits) != 1 {
			t.Errorf("expected a single attempt, got %d", atomic.LoadInt32(&hits))
		}
		if len(sleeper.delays) != 0 {
			t.Errorf("expected no sleeps, got %v", sleeper.delays)
		}
	})

	t.Run("exhausted retries return the last error", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		sleeper := &recordingSleeper{}
		c := newTestClient(Config{MaxRetries: 3, BreakerThreshold: 100}, sleeper)

		err := c.FetchJSON(context.Background(), srv.URL, nil, &payload{})

		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
			t.Fatalf("expected wrapped 502, got %v", err)
		}
		if atomic.LoadInt32(&hits) != 3 {
			t.Errorf("expected 3 attempts, got %d", atomic.LoadInt32(&hits))
		}
		if len(sleeper.delays) != 2 {
			t.Errorf("expected 2 sleeps, got %d", len(sleeper.delays))
		}
	})

	t.Run("connection errors are retried", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		deadURL := srv.URL
		srv.Close()
		sleeper := &recordingSleeper{}
		c := newTestClient(Config{MaxRetries: 3, BreakerThreshold: 100}, sleeper)

		err := c.FetchJSON(context.Background(), deadURL, nil, &payload{})

		if err == nil {
			t.Fatal("expected an error for a closed server")
		}
		if len(sleeper.delays) != 2 {
			t.Errorf("expected 2 sleeps, got %d", len(sleeper.delays))
		}
	})

	t.Run("per-call timeout is transient", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&hits, 1) == 1 {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				return
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()
		sleeper := &recordingSleeper{}
		c := newTestClient(Config{MaxRetries: 2}, sleeper)

		var out payload
		err := c.FetchJSONWith(context.Background(), srv.URL, nil, 50*time.Millisecond, 2, &out)

		if err != nil {
			t.Fatalf("expected success on second attempt, got %v", err)
		}
		if atomic.LoadInt32(&hits) != 2 {
			t.Errorf("expected 2 attempts, got %d", atomic.LoadInt32(&hits))
		}
	})
}

func TestFetchJSON_QueryAndErrors(t *testing.T) {
	t.Run("merges params into the query string", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true,"echo":"` + r.URL.Query().Get("q") + "|" + r.URL.Query().Get("units") + `"}`))
		}))
		defer srv.Close()
		c := newTestClient(Config{MaxRetries: 1}, &recordingSleeper{})

		var out payload
		err := c.FetchJSON(context.Background(), srv.URL+"?units=metric", url.Values{"q": {"Paris"}}, &out)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Echo != "Paris|metric" {
			t.Errorf("expected both params, got %q", out.Echo)
		}
	})

	t.Run("status errors do not leak the query string", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()
		c := newTestClient(Config{MaxRetries: 1}, &recordingSleeper{})

		err := c.FetchJSON(context.Background(), srv.URL, url.Values{"appid": {"secret-key"}}, &payload{})

		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if se.URL != srv.URL {
			t.Errorf("expected sanitized url %s, got %s", srv.URL, se.URL)
		}
	})

	t.Run("invalid json is a terminal decode error", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()
		c := newTestClient(Config{MaxRetries: 3}, &recordingSleeper{})

		if err := c.FetchJSON(context.Background(), srv.URL, nil, &payload{}); err == nil {
			t.Fatal("expected decode error")
		}
		if atomic.LoadInt32(&hits) != 1 {
			t.Errorf("expected no retry on decode error, got %d attempts", atomic.LoadInt32(&hits))
		}
	})
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := newTestClient(Config{MaxRetries: 1, BreakerThreshold: 2, BreakerCooldown: time.Minute}, &recordingSleeper{})

	for i := 0; i < 2; i++ {
		_ = c.FetchJSON(context.Background(), srv.URL, nil, &payload{})
	}
	err := c.FetchJSON(context.Background(), srv.URL, nil, &payload{})

	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("expected the open breaker to short-circuit, got %d hits", atomic.LoadInt32(&hits))
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 3 * time.Second}
	low := New(cfg, newTestLogger(), WithJitterSource(func() float64 { return 0 }))
	high := New(cfg, newTestLogger(), WithJitterSource(func() float64 { return 0.999999 }))

	if got := low.backoff(1); got != 900*time.Millisecond {
		t.Errorf("expected -10%% jitter to give 900ms, got %v", got)
	}
	if got := high.backoff(2); got < 2199*time.Millisecond || got > 2200*time.Millisecond {
		t.Errorf("expected ~2.2s, got %v", got)
	}
	if got := low.backoff(5); got != 2700*time.Millisecond {
		t.Errorf("expected capped delay 3s minus jitter, got %v", got)
	}
}

func TestCloseIsSafeAndRecreates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	c := newTestClient(Config{MaxRetries: 1}, &recordingSleeper{})

	c.Close() // nothing created yet

	if err := c.FetchJSON(context.Background(), srv.URL, nil, &payload{}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	c.Close()
	if c.http != nil {
		t.Fatal("expected pool to be released")
	}
	if err := c.FetchJSON(context.Background(), srv.URL, nil, &payload{}); err != nil {
		t.Fatalf("fetch after close: %v", err)
	}
	c.Close()
	c.Close()
}
