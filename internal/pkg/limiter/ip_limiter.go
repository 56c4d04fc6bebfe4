/*
Package limiter keeps one token bucket per client IP address.

Buckets that have refilled completely are dropped by a background sweep, so the map
only holds addresses that were active recently.
*/
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// DefaultSweepInterval is how often idle buckets are removed.
const DefaultSweepInterval = 3 * time.Minute

// IPRateLimiter hands out a rate.Limiter per IP address.
type IPRateLimiter struct {
	mu     sync.RWMutex
	limits map[string]*rate.Limiter

	r rate.Limit
	b int

	logger zerolog.Logger
}

// NewIPRateLimiter returns a limiter allowing r events per second with burst b for
// each address. The sweep goroutine runs until ctx is done.
func NewIPRateLimiter(ctx context.Context, r rate.Limit, b int, sweepEvery time.Duration) *IPRateLimiter {
	l := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		logger: logx.Component("limiter"),
	}

	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}
	go l.sweepLoop(ctx, sweepEvery)

	return l
}

// GetLimiter returns the bucket for ip, creating it on first use.
func (l *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limits[ip]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok = l.limits[ip]; !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limits[ip] = lim
	}
	return lim
}

// Allow consumes one token from ip's bucket.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.GetLimiter(ip).Allow()
}

// Len returns the number of tracked addresses.
func (l *IPRateLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limits)
}

func (l *IPRateLimiter) sweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// sweep drops buckets that are full at now, i.e. unused for a whole refill period.
func (l *IPRateLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	removed := 0
	for ip, lim := range l.limits {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(l.limits, ip)
			removed++
		}
	}
	remaining := len(l.limits)
	l.mu.Unlock()

	l.logger.Debug().
		Int("removed", removed).
		Int("remaining", remaining).
		Msg("rate limiter sweep finished")
	return removed
}

// Middleware rejects requests over the limit with ErrRateLimitExceeded.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			resp.RespondError(w, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of r.RemoteAddr. chi's RealIP middleware has
// already rewritten RemoteAddr when a trusted proxy header is present.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if ip == "" {
		return "unknown_ip"
	}
	return ip
}
