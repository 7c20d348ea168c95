package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/identity"
)

// DBTX is satisfied by a pool, a connection or a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema creates the tables used by Repository. Usernames are unique
// case-insensitively.
const Schema = `
CREATE TABLE IF NOT EXISTS app_user (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS app_user_username_idx ON app_user (lower(username));
`

// Repository implements identity.Repository using PostgreSQL.
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
	op := "identity.repo." + operation
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return apperror.Conflict(op, "username or email already registered")
		case "42P01": // undefined_table
			return apperror.Internal(op, fmt.Errorf("table does not exist - database migration required"))
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound(op, "user not found")
	}
	return apperror.Internal(op, fmt.Errorf("database error in %s: %w", operation, err))
}

func (r *Repository) Create(ctx context.Context, user *identity.User) error {
	query := `
		INSERT INTO app_user (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create", err)
	}
	return nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM app_user WHERE email = $1`

	var u identity.User
	err := r.db.QueryRow(ctx, query, email).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, r.handlePostgresError("get", err)
	}
	return &u, nil
}
