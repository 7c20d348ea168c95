package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/media"
	"github.com/tendant/simple-social/pkg/media/repo/postgres"
)

func newRepo(t *testing.T) *postgres.Repository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping postgres test: TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("postgres not available: %v", err)
	}

	repo := postgres.NewWithPool(pool)
	require.NoError(t, repo.Migrate(ctx))
	_, err = pool.Exec(ctx, "TRUNCATE media_asset")
	require.NoError(t, err)
	return repo
}

func TestRepository(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	owner := uuid.New()

	asset := &media.Asset{
		ID:           uuid.New(),
		OwnerID:      owner,
		Locator:      "media/" + owner.String() + "/a.png",
		URL:          "http://cdn/a.png",
		ContentType:  "image/png",
		OriginalName: "a.png",
		Size:         42,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.Create(ctx, asset))

	got, err := repo.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.Locator, got.Locator)
	assert.Nil(t, got.ContentID)

	contentID := uuid.New()
	require.NoError(t, repo.SetContent(ctx, asset.ID, contentID))
	got, err = repo.Get(ctx, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ContentID)
	assert.Equal(t, contentID, *got.ContentID)

	list, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, asset.ID))
	assert.ErrorIs(t, repo.Delete(ctx, asset.ID), apperror.ErrNotFound)
	_, err = repo.Get(ctx, asset.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, repo.SetContent(ctx, asset.ID, contentID), apperror.ErrNotFound)
}
