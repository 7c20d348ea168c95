package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/identity"
)

// RegisterRequest is the request body for registration
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenResponse carries an issued access token
type TokenResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

// IdentityHandler serves /api/auth. Its routes are public.
type IdentityHandler struct {
	service identity.Service
}

func NewIdentityHandler(service identity.Service) *IdentityHandler {
	return &IdentityHandler{service: service}
}

func (h *IdentityHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	return r
}

func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apperror.Render(w, r, apperror.Validation("identity.register", "invalid request body"))
		return
	}

	user, token, err := h.service.Register(r.Context(), identity.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		apperror.Render(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toTokenResponse(user, token))
}

func (h *IdentityHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apperror.Render(w, r, apperror.Validation("identity.login", "invalid request body"))
		return
	}

	user, token, err := h.service.Login(r.Context(), identity.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		apperror.Render(w, r, err)
		return
	}
	render.JSON(w, r, toTokenResponse(user, token))
}

func toTokenResponse(user *identity.User, token *identity.Token) TokenResponse {
	return TokenResponse{
		User: UserResponse{
			ID:        user.ID.String(),
			Username:  user.Username,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		},
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
	}
}
