// Package search maintains a full-text projection of content items, fed by
// content lifecycle events.
package search

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit   = 10
	MaxLimit       = 50
	MaxQueryLength = 256
)

// Projection is the searchable view of one content item. Its identifier is
// the content item's identifier.
type Projection struct {
	ContentID uuid.UUID `json:"contentId"`
	OwnerID   uuid.UUID `json:"ownerId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result is a ranked match.
type Result struct {
	Projection
	Score float64 `json:"score"`
}

// Index stores projections. Implementations must keep Insert and Remove
// commutative: once an id is removed, a later Insert of the same id is
// ignored.
type Index interface {
	// Insert adds p unless a projection with the same id exists or the id
	// was removed. It reports whether p was added.
	Insert(ctx context.Context, p Projection) (bool, error)
	// Remove deletes the projection and remembers the id as removed. It
	// reports whether a projection was present.
	Remove(ctx context.Context, contentID uuid.UUID) (bool, error)
	// Search returns up to limit projections ranked by relevance to query,
	// ties broken by newest first.
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}
