package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/identity"
)

// Repository is an in-memory identity.Repository.
type Repository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]identity.User
}

func New() *Repository {
	return &Repository{users: make(map[uuid.UUID]identity.User)}
}

func (r *Repository) Create(ctx context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ID == user.ID || strings.EqualFold(u.Username, user.Username) || u.Email == user.Email {
			return apperror.Conflict("identity.repo.create", "username or email already registered")
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("identity.repo.get", "user not found")
}
