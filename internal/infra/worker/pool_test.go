//go:build !integration

package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestPool_RunsTasks(t *testing.T) {
	// --- Arrange ---
	p := NewPool(3, newTestLogger())
	p.Start(context.Background())
	defer p.Stop()

	var wg sync.WaitGroup
	var ran atomic.Int32

	// --- Act ---
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func(ctx context.Context) error {
			defer wg.Done()
			ran.Add(1)
			if ran.Load()%5 == 0 {
				return errors.New("ignored")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()

	// --- Assert ---
	if ran.Load() != 20 {
		t.Errorf("expected 20 tasks, got %d", ran.Load())
	}
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	p := NewPool(1, newTestLogger())
	p.Start(context.Background())
	defer p.Stop()

	done := make(chan struct{})
	_ = p.Submit(context.Background(), func(ctx context.Context) error { panic("boom") })
	_ = p.Submit(context.Background(), func(ctx context.Context) error { close(done); return nil })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
}

func TestPool_SubmitAfterStopAndCancel(t *testing.T) {
	p := NewPool(1, newTestLogger())
	p.Stop()
	p.Stop()

	if err := p.Submit(context.Background(), func(ctx context.Context) error { return nil }); err != nil && !errors.Is(err, ErrPoolStopped) {
		t.Errorf("unexpected error %v", err)
	}
	if err := p.Submit(context.Background(), nil); err == nil {
		t.Error("expected error for nil task")
	}

	// A full queue with no workers blocks until ctx ends.
	q := NewPool(1, newTestLogger())
	for i := 0; i < 4; i++ {
		_ = q.Submit(context.Background(), func(ctx context.Context) error { return nil })
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Submit(ctx, func(ctx context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
