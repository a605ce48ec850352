package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedisLimiter(rdb, 2, time.Minute, "test")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "north:1.2.3.4")
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
	}

	d, err := l.Allow(ctx, "north:1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected third request in the window to be denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("expected retry within the window, got %s", d.RetryAfter)
	}

	mr.FastForward(time.Minute + time.Second)
	d, err = l.Allow(ctx, "north:1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Error("expected a new window after expiry")
	}
}

func TestRateLimitWith_Redis(t *testing.T) {
	_, rdb := newTestRedis(t)
	e := echo.New()
	handler := RateLimitWith(NewRedisLimiter(rdb, 1, time.Minute, "api"), zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())); err != nil {
		t.Fatalf("first request: unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	err := handler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	if StatusOf(err) != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimitWith_FailsOpen(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	e := echo.New()
	handler := RateLimitWith(NewRedisLimiter(rdb, 1, time.Minute, "api"), zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("expected request to pass when redis is down, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
