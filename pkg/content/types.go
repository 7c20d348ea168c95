package content

import (
	"time"

	"github.com/google/uuid"
)

// Item is a user-authored post.
type Item struct {
	ID        uuid.UUID   `json:"id"`
	OwnerID   uuid.UUID   `json:"ownerId"`
	Body      string      `json:"body"`
	AssetIDs  []uuid.UUID `json:"assetIds"`
	CreatedAt time.Time   `json:"createdAt"`
}

// CreateItemRequest contains the parameters for creating an item.
type CreateItemRequest struct {
	OwnerID  uuid.UUID
	Body     string
	AssetIDs []uuid.UUID
}

// ListResult is one page of the listing, newest first.
type ListResult struct {
	Items       []Item `json:"items"`
	CurrentPage int    `json:"currentPage"`
	PageSize    int    `json:"pageSize"`
	TotalPages  int    `json:"totalPages"`
	TotalItems  int    `json:"totalItems"`
}

// Outcome reports the side effects of a mutation that happen after the
// store write. Both are best effort: the write is never rolled back.
type Outcome struct {
	Published   bool `json:"published"`
	Invalidated bool `json:"invalidated"`
}

// Degraded reports whether the event was not published or the cache was not
// invalidated.
func (o Outcome) Degraded() bool {
	return !o.Published || !o.Invalidated
}

const (
	MinBodyLength    = 3
	MaxBodyLength    = 5000
	MaxAssetsPerItem = 20

	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)
