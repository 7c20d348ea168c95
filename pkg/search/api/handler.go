package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/httpapi"
	"github.com/tendant/simple-social/pkg/search"
)

// ResultResponse is one search hit
type ResultResponse struct {
	ContentID string    `json:"contentId"`
	OwnerID   string    `json:"ownerId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Score     float64   `json:"score"`
}

// SearchResponse is the response body for a query. Results is never null.
type SearchResponse struct {
	Results []ResultResponse      `json:"results"`
	Error   *apperror.ErrorDetail `json:"error,omitempty"`
}

// SearchHandler serves /api/search
type SearchHandler struct {
	service *search.Service
}

func NewSearchHandler(service *search.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// Routes returns the routes for search
func (h *SearchHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(httpapi.TrustedIdentity)

	r.Get("/posts", h.SearchPosts)

	return r
}

func (h *SearchHandler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(w, r, apperror.Validation("search.query", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	results, err := h.service.Query(r.Context(), r.URL.Query().Get("query"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := SearchResponse{Results: make([]ResultResponse, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, ResultResponse{
			ContentID: res.ContentID.String(),
			OwnerID:   res.OwnerID.String(),
			Text:      res.Text,
			CreatedAt: res.CreatedAt,
			Score:     res.Score,
		})
	}
	render.JSON(w, r, resp)
}

// fail keeps the results array in error responses so clients can always
// iterate it.
func (h *SearchHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, apperror.HTTPStatus(err))
	render.JSON(w, r, SearchResponse{
		Results: []ResultResponse{},
		Error: &apperror.ErrorDetail{
			Code:    apperror.KindOf(err).String(),
			Message: apperror.PublicMessage(err),
		},
	})
}
