package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Routing keys for content lifecycle events.
const (
	RoutingContentCreated = "content.created"
	RoutingContentDeleted = "content.deleted"
)

// ContentCreated is published after a content item is persisted.
type ContentCreated struct {
	ContentID uuid.UUID   `json:"contentId"`
	OwnerID   uuid.UUID   `json:"ownerId"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"createdAt"`
	AssetIDs  []uuid.UUID `json:"assetIds,omitempty"`
}

// ContentDeleted is published after a content item is deleted.
type ContentDeleted struct {
	ContentID uuid.UUID   `json:"contentId"`
	OwnerID   uuid.UUID   `json:"ownerId"`
	AssetIDs  []uuid.UUID `json:"assetIds"`
}

func (e ContentCreated) Payload() Payload {
	p := Payload{
		"contentId": e.ContentID.String(),
		"ownerId":   e.OwnerID.String(),
		"body":      e.Body,
		"createdAt": e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(e.AssetIDs) > 0 {
		p["assetIds"] = uuidStrings(e.AssetIDs)
	}
	return p
}

func (e ContentDeleted) Payload() Payload {
	return Payload{
		"contentId": e.ContentID.String(),
		"ownerId":   e.OwnerID.String(),
		"assetIds":  uuidStrings(e.AssetIDs),
	}
}

// DecodeContentCreated decodes a content.created payload. Errors are wrapped
// with Discard since a malformed payload never becomes valid.
func DecodeContentCreated(p Payload) (ContentCreated, error) {
	var e ContentCreated
	if err := decode(p, &e); err != nil {
		return e, Discard(fmt.Errorf("%s: %w", RoutingContentCreated, err))
	}
	if e.ContentID == uuid.Nil {
		return e, Discard(fmt.Errorf("%s: contentId is required", RoutingContentCreated))
	}
	return e, nil
}

// DecodeContentDeleted decodes a content.deleted payload.
func DecodeContentDeleted(p Payload) (ContentDeleted, error) {
	var e ContentDeleted
	if err := decode(p, &e); err != nil {
		return e, Discard(fmt.Errorf("%s: %w", RoutingContentDeleted, err))
	}
	if e.ContentID == uuid.Nil {
		return e, Discard(fmt.Errorf("%s: contentId is required", RoutingContentDeleted))
	}
	return e, nil
}

func decode(p Payload, v any) error {
	if p == nil {
		return errors.New("empty payload")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
