package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/identity"
	"github.com/tendant/simple-social/pkg/identity/repo/memory"
	"golang.org/x/crypto/bcrypt"
)

var testKey = []byte("test-signing-key")

func newService(t *testing.T, opts ...identity.Option) identity.Service {
	t.Helper()
	opts = append([]identity.Option{
		identity.WithRepository(memory.New()),
		identity.WithSigningKey(testKey),
		identity.WithBcryptCost(bcrypt.MinCost),
	}, opts...)
	svc, err := identity.New(opts...)
	require.NoError(t, err)
	return svc
}

func parse(t *testing.T, token string) *identity.Claims {
	t.Helper()
	claims := &identity.Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return testKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	return claims
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := identity.New(identity.WithSigningKey(testKey))
	assert.Error(t, err)
	_, err = identity.New(identity.WithRepository(memory.New()))
	assert.Error(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc := newService(t, identity.WithClock(func() time.Time { return now }))

	user, token, err := svc.Register(ctx, identity.RegisterRequest{
		Username: " alice ",
		Email:    "Alice@Example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	claims := parse(t, token.AccessToken)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, time.Second)

	got, token, err := svc.Login(ctx, identity.LoginRequest{Email: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.ID, token.UserID)
}

func TestRegister_Errors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, _, err := svc.Register(ctx, identity.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "secret123"})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  identity.RegisterRequest
		want error
	}{
		{"DuplicateEmail", identity.RegisterRequest{Username: "bob2", Email: "BOB@example.com", Password: "secret123"}, apperror.ErrConflict},
		{"DuplicateUsername", identity.RegisterRequest{Username: "Bob", Email: "other@example.com", Password: "secret123"}, apperror.ErrConflict},
		{"BadEmail", identity.RegisterRequest{Username: "carol", Email: "not-an-email", Password: "secret123"}, apperror.ErrValidation},
		{"ShortUsername", identity.RegisterRequest{Username: "ca", Email: "carol@example.com", Password: "secret123"}, apperror.ErrValidation},
		{"ShortPassword", identity.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "12345"}, apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin_Errors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, _, err := svc.Register(ctx, identity.RegisterRequest{Username: "dave", Email: "dave@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, identity.LoginRequest{Email: "dave@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, apperror.ErrAuth)

	_, _, err = svc.Login(ctx, identity.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, apperror.ErrAuth)

	_, _, err = svc.Login(ctx, identity.LoginRequest{Email: "dave@example.com"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
