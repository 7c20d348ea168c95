package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"golang.org/x/crypto/bcrypt"
)

// ClaimUserID is the token claim holding the user id. The gateway reads it.
const ClaimUserID = "userId"

// Claims are the JWT claims issued at login.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

type service struct {
	repository Repository
	signingKey []byte
	tokenTTL   time.Duration
	bcryptCost int
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the service.
type Option func(*service)

func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithSigningKey sets the HS256 secret shared with the gateway.
func WithSigningKey(key []byte) Option {
	return func(s *service) {
		s.signingKey = key
	}
}

func WithTokenTTL(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.tokenTTL = d
		}
	}
}

// WithBcryptCost lowers the hashing cost, for tests.
func WithBcryptCost(cost int) Option {
	return func(s *service) {
		s.bcryptCost = cost
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

func New(options ...Option) (Service, error) {
	s := &service{
		tokenTTL:   DefaultTokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, option := range options {
		option(s)
	}
	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if len(s.signingKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	return s, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, *Token, error) {
	const op = "identity.register"

	username := strings.TrimSpace(req.Username)
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, nil, apperror.Validation(op, "a valid email is required")
	}
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || n > MaxUsernameLength {
		return nil, nil, apperror.Validation(op, fmt.Sprintf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if utf8.RuneCountInString(req.Password) < MinPasswordLength {
		return nil, nil, apperror.Validation(op, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, nil, apperror.Validation(op, "password is too long")
		}
		return nil, nil, apperror.Internal(op, fmt.Errorf("failed to hash password: %w", err))
	}

	user := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repository.Create(ctx, user); err != nil {
		return nil, nil, wrap(op, err)
	}

	token, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, apperror.Internal(op, err)
	}
	s.logger.Info("Registered user", "user_id", user.ID)
	return user, token, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, *Token, error) {
	const op = "identity.login"
	const invalid = "invalid email or password"

	email, err := normalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, nil, apperror.Validation(op, "email and password are required")
	}

	user, err := s.repository.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil, apperror.Auth(op, invalid, nil)
		}
		return nil, nil, wrap(op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, apperror.Auth(op, invalid, err)
	}

	token, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, apperror.Internal(op, err)
	}
	return user, token, nil
}

func (s *service) issue(userID uuid.UUID) (*Token, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{AccessToken: signed, UserID: userID, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("invalid email %q", raw)
	}
	return email, nil
}

func wrap(op string, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(op, err)
}
