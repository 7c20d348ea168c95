package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/content"
)

// DBTX is satisfied by a pool, a connection or a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema creates the tables used by Repository.
const Schema = `
CREATE TABLE IF NOT EXISTS content_item (
	id         UUID PRIMARY KEY,
	owner_id   UUID NOT NULL,
	body       TEXT NOT NULL,
	asset_ids  UUID[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS content_item_created_at_idx ON content_item (created_at DESC, id DESC);
`

// Repository implements content.Repository using PostgreSQL.
type Repository struct {
	db DBTX
}

func New(db DBTX) *Repository {
	return &Repository{db: db}
}

func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate applies Schema.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

func (r *Repository) handlePostgresError(operation string, err error) error {
	op := "content.repo." + operation
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return apperror.Conflict(op, "content already exists")
		case "42P01": // undefined_table
			return apperror.Internal(op, fmt.Errorf("table does not exist - database migration required"))
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound(op, "content not found")
	}
	return apperror.Internal(op, fmt.Errorf("database error in %s: %w", operation, err))
}

func (r *Repository) Create(ctx context.Context, item *content.Item) error {
	query := `
		INSERT INTO content_item (id, owner_id, body, asset_ids, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, item.ID, item.OwnerID, item.Body, assetIDs(item.AssetIDs), item.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*content.Item, error) {
	query := `
		SELECT id, owner_id, body, asset_ids, created_at
		FROM content_item WHERE id = $1`

	var item content.Item
	err := r.db.QueryRow(ctx, query, id).Scan(&item.ID, &item.OwnerID, &item.Body, &item.AssetIDs, &item.CreatedAt)
	if err != nil {
		return nil, r.handlePostgresError("get", err)
	}
	return &item, nil
}

func (r *Repository) List(ctx context.Context, offset, limit int) ([]content.Item, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM content_item`).Scan(&total); err != nil {
		return nil, 0, r.handlePostgresError("count", err)
	}

	query := `
		SELECT id, owner_id, body, asset_ids, created_at
		FROM content_item
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, r.handlePostgresError("list", err)
	}
	defer rows.Close()

	items := []content.Item{}
	for rows.Next() {
		var item content.Item
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Body, &item.AssetIDs, &item.CreatedAt); err != nil {
			return nil, 0, r.handlePostgresError("list", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, r.handlePostgresError("list", err)
	}
	return items, total, nil
}

// DeleteOwned deletes in one statement, so ownership is checked atomically
// with the removal.
func (r *Repository) DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) (*content.Item, error) {
	query := `
		DELETE FROM content_item
		WHERE id = $1 AND owner_id = $2
		RETURNING id, owner_id, body, asset_ids, created_at`

	var item content.Item
	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(&item.ID, &item.OwnerID, &item.Body, &item.AssetIDs, &item.CreatedAt)
	if err != nil {
		return nil, r.handlePostgresError("delete", err)
	}
	return &item, nil
}

func assetIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
