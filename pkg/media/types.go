package media

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// MaxUploadSize is the largest accepted upload, in bytes.
const MaxUploadSize = 5 << 20

// Asset is an uploaded media file. ContentID is set once a content item
// references the asset; the asset is deleted with that item.
type Asset struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"ownerId"`
	Locator      string     `json:"locator"`
	URL          string     `json:"url"`
	ContentType  string     `json:"contentType"`
	OriginalName string     `json:"originalName"`
	Size         int64      `json:"size"`
	ContentID    *uuid.UUID `json:"contentId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// UploadRequest contains the parameters for storing a new asset.
type UploadRequest struct {
	OwnerID      uuid.UUID
	OriginalName string
	ContentType  string
	Size         int64
	Reader       io.Reader
}

// UploadParams is what a BlobStore receives for one object.
type UploadParams struct {
	Key         string
	ContentType string
	Size        int64
	Reader      io.Reader
}
