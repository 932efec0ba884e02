//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type mockDispatcher struct {
	calls        atomic.Int32
	DispatchFunc func(ctx context.Context, override string) (*usecase.DispatchReport, error)
}

func (m *mockDispatcher) Dispatch(ctx context.Context, override string) (*usecase.DispatchReport, error) {
	m.calls.Add(1)
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, override)
	}
	return &usecase.DispatchReport{TargetTime: override}, nil
}

type mockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	unlocked []string
	err      error
}

func newMockLocker() *mockLocker { return &mockLocker{held: map[string]string{}} }

func (m *mockLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if _, ok := m.held[key]; ok {
		return "", domain.ErrLockHeld
	}
	m.held[key] = "tok-" + key
	return m.held[key], nil
}

func (m *mockLocker) Unlock(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
		m.unlocked = append(m.unlocked, key)
	}
	return nil
}

func fixedClock(h, m int) func() time.Time {
	return func() time.Time { return time.Date(2024, 3, 1, h, m, 30, 0, time.UTC) }
}

func TestDailyWorker_RunOnce(t *testing.T) {
	t.Run("dispatches the current minute", func(t *testing.T) {
		// --- Arrange ---
		var got string
		d := &mockDispatcher{DispatchFunc: func(ctx context.Context, override string) (*usecase.DispatchReport, error) {
			got = override
			return &usecase.DispatchReport{}, nil
		}}
		w := NewDailyWorker("", 0, d, nil, newTestLogger())
		w.now = fixedClock(6, 0)

		// --- Act ---
		w.RunOnce(context.Background())

		// --- Assert ---
		if got != "06:00" {
			t.Errorf("expected 06:00, got %q", got)
		}
	})

	t.Run("second instance skips a locked minute", func(t *testing.T) {
		locker := newMockLocker()
		d1, d2 := &mockDispatcher{}, &mockDispatcher{}
		w1 := NewDailyWorker("", 0, d1, locker, newTestLogger())
		w2 := NewDailyWorker("", 0, d2, locker, newTestLogger())
		w1.now, w2.now = fixedClock(7, 15), fixedClock(7, 15)

		w1.RunOnce(context.Background())
		w2.RunOnce(context.Background())

		if d1.calls.Load() != 1 || d2.calls.Load() != 0 {
			t.Errorf("expected only first instance to dispatch, got %d/%d", d1.calls.Load(), d2.calls.Load())
		}
	})

	t.Run("failed dispatch releases the lock", func(t *testing.T) {
		locker := newMockLocker()
		d := &mockDispatcher{DispatchFunc: func(ctx context.Context, override string) (*usecase.DispatchReport, error) {
			return nil, errors.New("db down")
		}}
		w := NewDailyWorker("", 0, d, locker, newTestLogger())
		w.now = fixedClock(7, 16)

		w.RunOnce(context.Background())

		if len(locker.unlocked) != 1 || locker.unlocked[0] != "lock:daily_dispatch:07:16" {
			t.Errorf("expected lock release, got %v", locker.unlocked)
		}
	})

	t.Run("lock backend failure does not block dispatch", func(t *testing.T) {
		locker := newMockLocker()
		locker.err = errors.New("redis down")
		d := &mockDispatcher{}
		w := NewDailyWorker("", 0, d, locker, newTestLogger())

		w.RunOnce(context.Background())

		if d.calls.Load() != 1 {
			t.Errorf("expected dispatch despite lock failure")
		}
	})

	t.Run("overlapping tick is skipped", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		d := &mockDispatcher{DispatchFunc: func(ctx context.Context, override string) (*usecase.DispatchReport, error) {
			close(started)
			<-release
			return &usecase.DispatchReport{}, nil
		}}
		w := NewDailyWorker("", 0, d, nil, newTestLogger())

		done := make(chan struct{})
		go func() {
			w.RunOnce(context.Background())
			close(done)
		}()
		<-started
		w.RunOnce(context.Background())
		close(release)
		<-done

		if d.calls.Load() != 1 {
			t.Errorf("expected a single dispatch, got %d", d.calls.Load())
		}
	})

	t.Run("panic is contained and guard released", func(t *testing.T) {
		first := true
		d := &mockDispatcher{DispatchFunc: func(ctx context.Context, override string) (*usecase.DispatchReport, error) {
			if first {
				first = false
				panic("boom")
			}
			return &usecase.DispatchReport{}, nil
		}}
		w := NewDailyWorker("", 0, d, nil, newTestLogger())

		w.RunOnce(context.Background())
		w.RunOnce(context.Background())

		if d.calls.Load() != 2 {
			t.Errorf("expected worker to keep running after panic, calls=%d", d.calls.Load())
		}
	})

	t.Run("cancelled context skips dispatch", func(t *testing.T) {
		d := &mockDispatcher{}
		w := NewDailyWorker("", 0, d, nil, newTestLogger())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		w.RunOnce(ctx)

		if d.calls.Load() != 0 {
			t.Error("expected no dispatch after cancellation")
		}
	})
}

func TestDailyWorker_StartRejectsBadCron(t *testing.T) {
	w := NewDailyWorker("not a cron", 0, &mockDispatcher{}, nil, newTestLogger())
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestDailyWorker_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewDailyWorker("* * * * *", 0, &mockDispatcher{}, nil, newTestLogger())

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.Stop()
	w.Stop()
}
