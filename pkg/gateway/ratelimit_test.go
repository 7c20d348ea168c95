package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-social/pkg/cache"
	cachememory "github.com/tendant/simple-social/pkg/cache/memory"
)

type brokenCounter struct {
	cache.Store
}

func (brokenCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := cachememory.New(cachememory.WithClock(func() time.Time { return now }))
	l := NewLimiter(store, 2, time.Minute, nil)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow(ctx, "10.0.0.1").Allowed)
	d := l.Allow(ctx, "10.0.0.1")
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)

	d = l.Allow(ctx, "10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, now.Add(time.Minute), d.Reset)

	assert.True(t, l.Allow(ctx, "10.0.0.2").Allowed, "budgets are per client")

	now = now.Add(time.Minute)
	assert.True(t, l.Allow(ctx, "10.0.0.1").Allowed, "new window resets the budget")
}

func TestLimiter_FailsOpen(t *testing.T) {
	l := NewLimiter(brokenCounter{}, 1, time.Minute, nil)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(context.Background(), "10.0.0.1").Allowed)
	}
}
