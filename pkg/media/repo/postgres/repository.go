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
	"github.com/tendant/simple-social/pkg/media"
)

// DBTX is satisfied by a pool, a connection or a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema creates the tables used by Repository.
const Schema = `
CREATE TABLE IF NOT EXISTS media_asset (
	id            UUID PRIMARY KEY,
	owner_id      UUID NOT NULL,
	locator       TEXT NOT NULL,
	url           TEXT NOT NULL,
	content_type  TEXT NOT NULL,
	original_name TEXT NOT NULL,
	size          BIGINT NOT NULL,
	content_id    UUID,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS media_asset_owner_idx ON media_asset (owner_id, created_at DESC);
`

const assetColumns = `id, owner_id, locator, url, content_type, original_name, size, content_id, created_at`

// Repository implements media.Repository using PostgreSQL.
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
	op := "media.repo." + operation
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return apperror.Conflict(op, "asset already exists")
		case "42P01": // undefined_table
			return apperror.Internal(op, fmt.Errorf("table does not exist - database migration required"))
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound(op, "asset not found")
	}
	return apperror.Internal(op, fmt.Errorf("database error in %s: %w", operation, err))
}

func scanAsset(row pgx.Row) (*media.Asset, error) {
	var a media.Asset
	err := row.Scan(&a.ID, &a.OwnerID, &a.Locator, &a.URL, &a.ContentType, &a.OriginalName, &a.Size, &a.ContentID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) Create(ctx context.Context, a *media.Asset) error {
	query := `INSERT INTO media_asset (` + assetColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query, a.ID, a.OwnerID, a.Locator, a.URL, a.ContentType, a.OriginalName, a.Size, a.ContentID, a.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*media.Asset, error) {
	a, err := scanAsset(r.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM media_asset WHERE id = $1`, id))
	if err != nil {
		return nil, r.handlePostgresError("get", err)
	}
	return a, nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]media.Asset, error) {
	rows, err := r.db.Query(ctx, `SELECT `+assetColumns+` FROM media_asset WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("list", err)
	}
	defer rows.Close()

	assets := []media.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, r.handlePostgresError("list", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list", err)
	}
	return assets, nil
}

func (r *Repository) SetContent(ctx context.Context, id, contentID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE media_asset SET content_id = $2 WHERE id = $1`, id, contentID)
	if err != nil {
		return r.handlePostgresError("set_content", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("media.repo.set_content", "asset not found")
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM media_asset WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("media.repo.delete", "asset not found")
	}
	return nil
}
