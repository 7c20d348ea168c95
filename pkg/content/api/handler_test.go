package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cachememory "github.com/tendant/simple-social/pkg/cache/memory"
	"github.com/tendant/simple-social/pkg/content"
	"github.com/tendant/simple-social/pkg/content/api"
	repomemory "github.com/tendant/simple-social/pkg/content/repo/memory"
	"github.com/tendant/simple-social/pkg/eventbus"
	busmemory "github.com/tendant/simple-social/pkg/eventbus/memory"
	"github.com/tendant/simple-social/pkg/httpapi"
)

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, key string, p eventbus.Payload) error {
	return assert.AnError
}

func setupContentHandlerTest(t *testing.T, pub eventbus.Publisher) http.Handler {
	t.Helper()
	if pub == nil {
		bus := busmemory.New()
		t.Cleanup(func() { _ = bus.Close() })
		pub = bus
	}
	svc, err := content.New(
		content.WithRepository(repomemory.New()),
		content.WithPublisher(pub),
		content.WithCache(cachememory.New()),
	)
	require.NoError(t, err)
	return api.NewContentHandler(svc).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, user uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set(httpapi.UserIDHeader, user.String())
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestContentHandler_Lifecycle(t *testing.T) {
	h := setupContentHandlerTest(t, nil)
	user := uuid.New()

	w := do(t, h, http.MethodPost, "/", user, api.CreateItemRequest{Body: "hello there"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created api.ItemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, user.String(), created.OwnerID)
	assert.False(t, created.Degraded)

	w = do(t, h, http.MethodGet, "/"+created.ID, user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got api.ItemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "hello there", got.Body)

	w = do(t, h, http.MethodGet, "/?page=1&limit=5", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list api.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.TotalItems)
	assert.Equal(t, 1, list.TotalPages)

	w = do(t, h, http.MethodDelete, "/"+created.ID, uuid.New(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/"+created.ID, user, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/"+created.ID, user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentHandler_Errors(t *testing.T) {
	h := setupContentHandlerTest(t, nil)
	user := uuid.New()

	tests := []struct {
		name   string
		method string
		path   string
		user   uuid.UUID
		body   any
		status int
	}{
		{"NoIdentity", http.MethodGet, "/", uuid.Nil, nil, http.StatusUnauthorized},
		{"ShortBody", http.MethodPost, "/", user, api.CreateItemRequest{Body: "x"}, http.StatusBadRequest},
		{"BadAssetID", http.MethodPost, "/", user, api.CreateItemRequest{Body: "hello", AssetIDs: []string{"nope"}}, http.StatusBadRequest},
		{"BadPage", http.MethodGet, "/?page=abc", user, nil, http.StatusBadRequest},
		{"PageZero", http.MethodGet, "/?page=0", user, nil, http.StatusBadRequest},
		{"LimitTooLarge", http.MethodGet, "/?limit=1000", user, nil, http.StatusBadRequest},
		{"UnknownItem", http.MethodGet, "/" + uuid.NewString(), user, nil, http.StatusNotFound},
		{"MalformedID", http.MethodGet, "/abc", user, nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestContentHandler_DegradedCreate(t *testing.T) {
	h := setupContentHandlerTest(t, failingPublisher{})

	w := do(t, h, http.MethodPost, "/", uuid.New(), api.CreateItemRequest{Body: "still saved"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created api.ItemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.Degraded)
}
