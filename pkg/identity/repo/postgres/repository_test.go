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
	"github.com/tendant/simple-social/pkg/identity"
	"github.com/tendant/simple-social/pkg/identity/repo/postgres"
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
	_, err = pool.Exec(ctx, "TRUNCATE app_user")
	require.NoError(t, err)
	return repo
}

func TestRepository(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	user := &identity.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt))

	dup := *user
	dup.ID = uuid.New()
	dup.Email = "other@example.com"
	dup.Username = "ALICE"
	assert.ErrorIs(t, repo.Create(ctx, &dup), apperror.ErrConflict)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
