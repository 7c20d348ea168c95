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
	"github.com/tendant/simple-social/pkg/content"
	"github.com/tendant/simple-social/pkg/content/repo/postgres"
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
	_, err = pool.Exec(ctx, "TRUNCATE content_item")
	require.NoError(t, err)
	return repo
}

func TestRepository(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	owner := uuid.New()

	base := time.Now().UTC().Truncate(time.Millisecond)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		item := &content.Item{
			ID:        uuid.New(),
			OwnerID:   owner,
			Body:      "post body",
			AssetIDs:  []uuid.UUID{uuid.New()},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(ctx, item))
		ids = append(ids, item.ID)
	}

	t.Run("Get", func(t *testing.T) {
		got, err := repo.Get(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, owner, got.OwnerID)
		assert.Len(t, got.AssetIDs, 1)

		_, err = repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		items, total, err := repo.List(ctx, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, items, 2)
		assert.Equal(t, ids[2], items[0].ID)
		assert.Equal(t, ids[1], items[1].ID)
	})

	t.Run("DeleteOwned", func(t *testing.T) {
		_, err := repo.DeleteOwned(ctx, ids[0], uuid.New())
		assert.ErrorIs(t, err, apperror.ErrNotFound)

		deleted, err := repo.DeleteOwned(ctx, ids[0], owner)
		require.NoError(t, err)
		assert.Equal(t, ids[0], deleted.ID)

		_, err = repo.DeleteOwned(ctx, ids[0], owner)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}
