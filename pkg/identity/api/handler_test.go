package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-social/pkg/identity"
	"github.com/tendant/simple-social/pkg/identity/api"
	"github.com/tendant/simple-social/pkg/identity/repo/memory"
	"golang.org/x/crypto/bcrypt"
)

func setupIdentityHandlerTest(t *testing.T) http.Handler {
	t.Helper()
	svc, err := identity.New(
		identity.WithRepository(memory.New()),
		identity.WithSigningKey([]byte("test-signing-key")),
		identity.WithBcryptCost(bcrypt.MinCost),
	)
	require.NoError(t, err)
	return api.NewIdentityHandler(svc).Routes()
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIdentityHandler(t *testing.T) {
	h := setupIdentityHandlerTest(t)
	reg := api.RegisterRequest{Username: "erin", Email: "erin@example.com", Password: "secret123"}

	w := post(t, h, "/register", reg)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var registered api.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
	assert.NotEmpty(t, registered.AccessToken)
	assert.Equal(t, "Bearer", registered.TokenType)
	assert.NotContains(t, w.Body.String(), "password")

	w = post(t, h, "/register", reg)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(t, h, "/login", api.LoginRequest{Email: reg.Email, Password: reg.Password})
	require.Equal(t, http.StatusOK, w.Code)
	var login api.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, registered.User.ID, login.User.ID)

	w = post(t, h, "/login", api.LoginRequest{Email: reg.Email, Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(t, h, "/register", api.RegisterRequest{Username: "x", Email: "bad", Password: "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
