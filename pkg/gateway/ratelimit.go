package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/tendant/simple-social/pkg/cache"
)

const (
	DefaultRateLimit  = 100
	DefaultRateWindow = 15 * time.Minute
)

// Limiter is a fixed-window request counter kept in a shared cache.Store so
// every gateway replica sees the same budget.
type Limiter struct {
	store  cache.Store
	limit  int64
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

func NewLimiter(store cache.Store, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, limit: int64(limit), window: window, now: time.Now, logger: logger}
}

// Allow counts one request from client. When the counter store fails the
// request is allowed.
func (l *Limiter) Allow(ctx context.Context, client string) Decision {
	now := l.now()
	windowIndex := now.UnixNano() / int64(l.window)
	reset := time.Unix(0, (windowIndex+1)*int64(l.window))

	n, err := l.store.Incr(ctx, cache.RateLimitKey(client, windowIndex), l.window)
	if err != nil {
		l.logger.Warn("Rate limit counter unavailable, allowing request", "client", client, "err", err)
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit, Reset: reset}
	}

	remaining := l.limit - n
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: n <= l.limit, Limit: l.limit, Remaining: remaining, Reset: reset}
}
