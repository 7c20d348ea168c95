package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-social/pkg/search"
	"github.com/tendant/simple-social/pkg/search/index/memory"
)

func TestIndex_InsertRemove(t *testing.T) {
	ctx := context.Background()
	ix := memory.New()
	p := search.Projection{ContentID: uuid.New(), Text: "Hello, World!", CreatedAt: time.Now()}

	ok, err := ix.Insert(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ix.Insert(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := ix.Remove(ctx, p.ContentID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = ix.Remove(ctx, p.ContentID)
	require.NoError(t, err)
	assert.False(t, removed)

	ok, err = ix.Insert(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, ix.Len())
}

func TestIndex_SearchTokenizes(t *testing.T) {
	ctx := context.Background()
	ix := memory.New()
	_, err := ix.Insert(ctx, search.Projection{ContentID: uuid.New(), Text: "Coffee, tea & coffee!", CreatedAt: time.Now()})
	require.NoError(t, err)

	res, err := ix.Search(ctx, "COFFEE", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 2.0, res[0].Score)

	res, err = ix.Search(ctx, "coff", 10)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestIndex_TombstonesExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ix := memory.New(
		memory.WithTombstoneRetention(time.Hour),
		memory.WithClock(func() time.Time { return now }),
	)

	late := search.Projection{ContentID: uuid.New(), Text: "late arrival", CreatedAt: now}
	_, err := ix.Remove(ctx, late.ContentID)
	require.NoError(t, err)
	_, err = ix.Remove(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Tombstones())

	now = now.Add(30 * time.Minute)
	ok, err := ix.Insert(ctx, late)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(time.Hour)
	_, err = ix.Remove(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Tombstones())

	ok, err = ix.Insert(ctx, late)
	require.NoError(t, err)
	assert.True(t, ok)
}
