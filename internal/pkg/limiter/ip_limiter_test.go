package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestLimiter(t *testing.T, r rate.Limit, b int) *IPRateLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewIPRateLimiter(ctx, r, b, time.Hour)
}

func TestIPRateLimiter_BurstPerIP(t *testing.T) {
	l := newTestLimiter(t, rate.Limit(0.001), 2)

	for i := 0; i < 2; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("third request should be limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("a different IP has its own bucket")
	}
	if got := l.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestIPRateLimiter_SameLimiterReturned(t *testing.T) {
	l := newTestLimiter(t, rate.Limit(1), 1)
	if l.GetLimiter("a") != l.GetLimiter("a") {
		t.Error("GetLimiter should return the same bucket for the same IP")
	}
}

func TestIPRateLimiter_SweepRemovesIdle(t *testing.T) {
	l := newTestLimiter(t, rate.Limit(1), 1)

	l.Allow("busy")
	l.GetLimiter("idle")

	removed := l.sweep(time.Now())
	if removed != 1 {
		t.Errorf("sweep removed %d, want 1", removed)
	}
	if got := l.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}

	if removed := l.sweep(time.Now().Add(time.Minute)); removed != 1 {
		t.Errorf("refilled bucket should be swept, removed %d", removed)
	}
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	l := newTestLimiter(t, rate.Limit(0.001), 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "192.0.2.10:5555"

	first := httptest.NewRecorder()
	h.ServeHTTP(first, req)
	if first.Code != http.StatusNoContent {
		t.Fatalf("first status = %d, want %d", first.Code, http.StatusNoContent)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want %d", second.Code, http.StatusTooManyRequests)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	r.RemoteAddr = "198.51.100.4:1234"
	if got := ClientIP(r); got != "198.51.100.4" {
		t.Errorf("ClientIP = %q", got)
	}

	r.RemoteAddr = "198.51.100.4"
	if got := ClientIP(r); got != "198.51.100.4" {
		t.Errorf("ClientIP without port = %q", got)
	}

	r.RemoteAddr = ""
	if got := ClientIP(r); got != "unknown_ip" {
		t.Errorf("ClientIP empty = %q", got)
	}
}
