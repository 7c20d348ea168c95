package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-social/pkg/eventbus"
	"github.com/tendant/simple-social/pkg/httpapi"
	"github.com/tendant/simple-social/pkg/search"
	"github.com/tendant/simple-social/pkg/search/api"
	"github.com/tendant/simple-social/pkg/search/index/memory"
)

func setupSearchHandlerTest(t *testing.T) http.Handler {
	t.Helper()
	svc, err := search.New(memory.New())
	require.NoError(t, err)

	for _, body := range []string{"weekend hiking trip", "hiking boots review"} {
		err := svc.HandleContentCreated(context.Background(), eventbus.Envelope{
			RoutingKey: eventbus.RoutingContentCreated,
			Payload: eventbus.ContentCreated{
				ContentID: uuid.New(),
				OwnerID:   uuid.New(),
				Body:      body,
				CreatedAt: time.Now(),
			}.Payload(),
		})
		require.NoError(t, err)
	}
	return api.NewSearchHandler(svc).Routes()
}

func get(h http.Handler, rawQuery string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/posts?"+rawQuery, nil)
	req.Header.Set(httpapi.UserIDHeader, uuid.NewString())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSearchHandler(t *testing.T) {
	h := setupSearchHandlerTest(t)

	t.Run("Matches", func(t *testing.T) {
		w := get(h, "query=hiking")
		require.Equal(t, http.StatusOK, w.Code)
		var resp api.SearchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Results, 2)
		assert.Nil(t, resp.Error)
	})

	t.Run("Limit", func(t *testing.T) {
		w := get(h, "query=hiking&limit=1")
		require.Equal(t, http.StatusOK, w.Code)
		var resp api.SearchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Results, 1)
	})

	for name, q := range map[string]string{
		"MissingQuery": "",
		"BlankQuery":   "query=%20%20",
		"LongQuery":    "query=" + url.QueryEscape(strings.Repeat("x", search.MaxQueryLength+1)),
		"BadLimit":     "query=hiking&limit=abc",
		"LimitTooHigh": "query=hiking&limit=51",
	} {
		t.Run(name, func(t *testing.T) {
			w := get(h, q)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"results":[]`)
		})
	}
}
