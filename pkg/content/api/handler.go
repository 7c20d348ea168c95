package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/content"
	"github.com/tendant/simple-social/pkg/httpapi"
)

// CreateItemRequest is the request body for creating an item
type CreateItemRequest struct {
	Body     string   `json:"body"`
	AssetIDs []string `json:"assetIds"`
}

// ItemResponse is the response body for an item
type ItemResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Body      string    `json:"body"`
	AssetIDs  []string  `json:"assetIds"`
	CreatedAt time.Time `json:"createdAt"`
	Degraded  bool      `json:"degraded,omitempty"`
}

// ListResponse is one page of items
type ListResponse struct {
	Items       []ItemResponse `json:"items"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	TotalItems  int            `json:"totalItems"`
}

// DeleteResponse acknowledges a delete
type DeleteResponse struct {
	ID       string `json:"id"`
	Deleted  bool   `json:"deleted"`
	Degraded bool   `json:"degraded,omitempty"`
}

// ContentHandler serves /api/content
type ContentHandler struct {
	service content.Service
}

func NewContentHandler(service content.Service) *ContentHandler {
	return &ContentHandler{service: service}
}

// Routes returns the routes for content. Every route requires the trusted
// user header set by the gateway.
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(httpapi.TrustedIdentity)

	r.Post("/", h.CreateItem)
	r.Get("/", h.ListItems)
	r.Get("/{id}", h.GetItem)
	r.Delete("/{id}", h.DeleteItem)

	return r
}

func (h *ContentHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpapi.UserID(r.Context())

	var req CreateItemRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apperror.Render(w, r, apperror.Validation("content.create", "invalid request body"))
		return
	}
	assetIDs := make([]uuid.UUID, 0, len(req.AssetIDs))
	for _, s := range req.AssetIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			apperror.Render(w, r, apperror.Validation("content.create", "invalid asset id"))
			return
		}
		assetIDs = append(assetIDs, id)
	}

	item, out, err := h.service.CreateItem(r.Context(), content.CreateItemRequest{
		OwnerID:  userID,
		Body:     req.Body,
		AssetIDs: assetIDs,
	})
	if err != nil {
		apperror.Render(w, r, err)
		return
	}

	resp := toItemResponse(*item)
	resp.Degraded = out.Degraded()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

func (h *ContentHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", content.DefaultPage)
	if err != nil {
		apperror.Render(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", content.DefaultPageSize)
	if err != nil {
		apperror.Render(w, r, err)
		return
	}

	res, err := h.service.ListItems(r.Context(), page, limit)
	if err != nil {
		apperror.Render(w, r, err)
		return
	}

	resp := ListResponse{
		Items:       make([]ItemResponse, 0, len(res.Items)),
		CurrentPage: res.CurrentPage,
		TotalPages:  res.TotalPages,
		TotalItems:  res.TotalItems,
	}
	for _, item := range res.Items {
		resp.Items = append(resp.Items, toItemResponse(item))
	}
	render.JSON(w, r, resp)
}

func (h *ContentHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.Render(w, r, apperror.NotFound("content.get", "content not found"))
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		apperror.Render(w, r, err)
		return
	}
	render.JSON(w, r, toItemResponse(*item))
}

func (h *ContentHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpapi.UserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.Render(w, r, apperror.NotFound("content.delete", "content not found"))
		return
	}

	out, err := h.service.DeleteItem(r.Context(), id, userID)
	if err != nil {
		apperror.Render(w, r, err)
		return
	}
	render.JSON(w, r, DeleteResponse{ID: id.String(), Deleted: true, Degraded: out.Degraded()})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation("content.list", name+" must be an integer")
	}
	return n, nil
}

func toItemResponse(item content.Item) ItemResponse {
	assets := make([]string, len(item.AssetIDs))
	for i, id := range item.AssetIDs {
		assets[i] = id.String()
	}
	return ItemResponse{
		ID:        item.ID.String(),
		OwnerID:   item.OwnerID.String(),
		Body:      item.Body,
		AssetIDs:  assets,
		CreatedAt: item.CreatedAt,
	}
}
