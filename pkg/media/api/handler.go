package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/httpapi"
	"github.com/tendant/simple-social/pkg/media"
)

// multipartOverhead is the slack allowed on top of the file for the form
// envelope.
const multipartOverhead = 64 << 10

// AssetResponse is the response body for an asset
type AssetResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	URL          string    `json:"url"`
	ContentType  string    `json:"contentType"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	ContentID    string    `json:"contentId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ListResponse wraps the caller's assets
type ListResponse struct {
	Result []AssetResponse `json:"result"`
}

// MediaHandler serves /api/media
type MediaHandler struct {
	service media.Service
}

func NewMediaHandler(service media.Service) *MediaHandler {
	return &MediaHandler{service: service}
}

// Routes returns the routes for media
func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(httpapi.TrustedIdentity)

	r.With(httpapi.RequestSizeLimit(media.MaxUploadSize + multipartOverhead)).Post("/upload", h.Upload)
	r.Get("/", h.ListAssets)
	r.Get("/{id}", h.GetAsset)

	return r
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpapi.UserID(r.Context())

	if err := r.ParseMultipartForm(media.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apperror.Render(w, r, apperror.Validation("media.upload", "file too large"))
			return
		}
		apperror.Render(w, r, apperror.Validation("media.upload", "invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		apperror.Render(w, r, apperror.Validation("media.upload", "no file found"))
		return
	}
	defer file.Close()

	asset, err := h.service.Upload(r.Context(), media.UploadRequest{
		OwnerID:      userID,
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Reader:       file,
	})
	if err != nil {
		slog.Error("Failed to upload asset", "owner_id", userID, "err", err)
		apperror.Render(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toAssetResponse(*asset))
}

func (h *MediaHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpapi.UserID(r.Context())

	assets, err := h.service.ListAssets(r.Context(), userID)
	if err != nil {
		apperror.Render(w, r, err)
		return
	}
	resp := ListResponse{Result: make([]AssetResponse, 0, len(assets))}
	for _, a := range assets {
		resp.Result = append(resp.Result, toAssetResponse(a))
	}
	render.JSON(w, r, resp)
}

func (h *MediaHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.Render(w, r, apperror.NotFound("media.get", "asset not found"))
		return
	}
	asset, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		apperror.Render(w, r, err)
		return
	}
	render.JSON(w, r, toAssetResponse(*asset))
}

func toAssetResponse(a media.Asset) AssetResponse {
	resp := AssetResponse{
		ID:           a.ID.String(),
		OwnerID:      a.OwnerID.String(),
		URL:          a.URL,
		ContentType:  a.ContentType,
		OriginalName: a.OriginalName,
		Size:         a.Size,
		CreatedAt:    a.CreatedAt,
	}
	if a.ContentID != nil {
		resp.ContentID = a.ContentID.String()
	}
	return resp
}
