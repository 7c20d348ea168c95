package media

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/eventbus"
)

// Repository persists asset records.
type Repository interface {
	Create(ctx context.Context, asset *Asset) error
	// Get returns apperror.ErrNotFound when the asset does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Asset, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Asset, error)
	// SetContent records the content item referencing the asset.
	SetContent(ctx context.Context, id, contentID uuid.UUID) error
	// Delete returns apperror.ErrNotFound when the asset does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// BlobStore is the remote object store holding asset bytes.
type BlobStore interface {
	Upload(ctx context.Context, params UploadParams) error
	// Delete removes the object. A missing object is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns where clients fetch the object.
	URL(key string) string
}

// Service is the media API.
type Service interface {
	Upload(ctx context.Context, req UploadRequest) (*Asset, error)
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)
	ListAssets(ctx context.Context, ownerID uuid.UUID) ([]Asset, error)

	HandleContentCreated(ctx context.Context, env eventbus.Envelope) error
	HandleContentDeleted(ctx context.Context, env eventbus.Envelope) error
}
