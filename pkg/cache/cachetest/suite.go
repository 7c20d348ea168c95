// Package cachetest holds behaviour tests shared by every cache.Store.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-social/pkg/cache"
)

// Run exercises a fresh store returned by newStore in each subtest.
func Run(t *testing.T, newStore func(t *testing.T) cache.Store) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "item:absent")
		assert.ErrorIs(t, err, cache.ErrMiss)
	})

	t.Run("SetGet", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "item:a", []byte(`{"id":"a"}`), time.Hour))
		v, err := s.Get(ctx, "item:a")
		require.NoError(t, err)
		assert.Equal(t, `{"id":"a"}`, string(v))
	})

	t.Run("SetNX", func(t *testing.T) {
		s := newStore(t)
		ok, err := s.SetNX(ctx, "item:a", []byte("first"), time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.SetNX(ctx, "item:a", []byte("second"), time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		v, err := s.Get(ctx, "item:a")
		require.NoError(t, err)
		assert.Equal(t, "first", string(v))
	})

	t.Run("SetNXCannotReplaceTombstone", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "item:a", cache.Tombstone, time.Minute))
		ok, err := s.SetNX(ctx, "item:a", []byte("stale"), time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		v, err := s.Get(ctx, "item:a")
		require.NoError(t, err)
		assert.True(t, cache.IsTombstone(v))
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "item:a", []byte("a"), time.Hour))
		require.NoError(t, s.Set(ctx, "item:b", []byte("b"), time.Hour))
		require.NoError(t, s.Delete(ctx, "item:a", "item:b", "item:missing"))

		_, err := s.Get(ctx, "item:a")
		assert.ErrorIs(t, err, cache.ErrMiss)
		_, err = s.Get(ctx, "item:b")
		assert.ErrorIs(t, err, cache.ErrMiss)
		require.NoError(t, s.Delete(ctx))
	})

	t.Run("DeleteByPrefix", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{cache.ListKey(1, 10), cache.ListKey(2, 10), cache.ListKey(1, 50)} {
			require.NoError(t, s.Set(ctx, k, []byte("page"), time.Hour))
		}
		require.NoError(t, s.Set(ctx, "item:keep", []byte("x"), time.Hour))

		require.NoError(t, s.DeleteByPrefix(ctx, cache.ListPrefix))

		_, err := s.Get(ctx, cache.ListKey(1, 10))
		assert.ErrorIs(t, err, cache.ErrMiss)
		_, err = s.Get(ctx, cache.ListKey(1, 50))
		assert.ErrorIs(t, err, cache.ErrMiss)
		_, err = s.Get(ctx, "item:keep")
		assert.NoError(t, err)
	})

	t.Run("Incr", func(t *testing.T) {
		s := newStore(t)
		key := cache.RateLimitKey("10.0.0.1", 42)
		for want := int64(1); want <= 3; want++ {
			n, err := s.Incr(ctx, key, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
		n, err := s.Incr(ctx, cache.RateLimitKey("10.0.0.1", 43), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
