package lock

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestLocker(t *testing.T, wait time.Duration) (*miniredis.Miniredis, Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisLocker(client, 5*time.Second, wait, zerolog.Nop())
}

func TestRedisLocker_RunsAndReleases(t *testing.T) {
	mr, l := newTestLocker(t, 0)

	ran := false
	err := l.WithLock(context.Background(), "slots:north:doc-1", func(ctx context.Context) error {
		ran = true
		if !mr.Exists("lock:slots:north:doc-1") {
			t.Error("expected lock key to exist while held")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("expected fn to run")
	}
	if mr.Exists("lock:slots:north:doc-1") {
		t.Error("expected lock key to be released")
	}
}

func TestRedisLocker_Contended(t *testing.T) {
	mr, l := newTestLocker(t, 60*time.Millisecond)
	if err := mr.Set("lock:slots:north:doc-1", "someone-else"); err != nil {
		t.Fatal(err)
	}

	err := l.WithLock(context.Background(), "slots:north:doc-1", func(ctx context.Context) error {
		t.Error("fn must not run while another holder owns the lock")
		return nil
	})
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	got, _ := mr.Get("lock:slots:north:doc-1")
	if got != "someone-else" {
		t.Errorf("foreign lock must not be released, got %q", got)
	}
}

func TestRedisLocker_PropagatesError(t *testing.T) {
	_, l := newTestLocker(t, 0)
	boom := errors.New("boom")
	if err := l.WithLock(context.Background(), "k", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestNop(t *testing.T) {
	ran := false
	if err := (Nop{}).WithLock(context.Background(), "k", func(context.Context) error {
		ran = true
		return nil
	}); err != nil || !ran {
		t.Errorf("expected Nop to run fn, ran=%v err=%v", ran, err)
	}
}

func TestRedisLocker_LogsReleaseFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	var buf bytes.Buffer
	l := NewRedisLocker(client, 5*time.Second, 0, zerolog.New(&buf))

	err := l.WithLock(context.Background(), "slots:north:doc-1", func(ctx context.Context) error {
		mr.Close()
		return nil
	})
	if err != nil {
		t.Fatalf("release failure must not fail the call, got %v", err)
	}
	if !strings.Contains(buf.String(), "lock release failed") || !strings.Contains(buf.String(), "lock:slots:north:doc-1") {
		t.Errorf("expected release failure to be logged, got %q", buf.String())
	}
}
