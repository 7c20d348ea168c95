package identity

import "context"

// Repository persists users. Username and email are unique.
type Repository interface {
	// Create returns apperror.ErrConflict when the username or email is taken.
	Create(ctx context.Context, user *User) error
	// GetByEmail returns apperror.ErrNotFound when no user has the email.
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Service registers users and issues tokens.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, *Token, error)
	Login(ctx context.Context, req LoginRequest) (*User, *Token, error)
}
