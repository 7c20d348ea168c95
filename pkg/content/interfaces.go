package content

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists content items.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	// Get returns apperror.ErrNotFound when the item does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	// List returns items newest first together with the total item count.
	List(ctx context.Context, offset, limit int) ([]Item, int, error)
	// DeleteOwned removes the item if it is owned by ownerID and returns what
	// was removed. Missing and foreign items both yield apperror.ErrNotFound.
	DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) (*Item, error)
}

// Service is the content API used by the HTTP layer.
type Service interface {
	CreateItem(ctx context.Context, req CreateItemRequest) (*Item, Outcome, error)
	DeleteItem(ctx context.Context, id, ownerID uuid.UUID) (Outcome, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context, page, pageSize int) (*ListResult, error)
}
