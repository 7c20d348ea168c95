package identity

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
	DefaultTokenTTL   = time.Hour
)

// User is a registered account. PasswordHash is a bcrypt hash and never
// leaves the service.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

type LoginRequest struct {
	Email    string
	Password string
}

// Token is an issued bearer credential.
type Token struct {
	AccessToken string
	UserID      uuid.UUID
	ExpiresAt   time.Time
}
