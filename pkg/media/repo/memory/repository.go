package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/media"
)

// Repository is an in-memory media.Repository.
type Repository struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]media.Asset
}

func New() *Repository {
	return &Repository{assets: make(map[uuid.UUID]media.Asset)}
}

func (r *Repository) Create(ctx context.Context, asset *media.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[asset.ID]; exists {
		return apperror.Conflict("media.repo.create", "asset already exists")
	}
	r.assets[asset.ID] = clone(*asset)
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*media.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, ok := r.assets[id]
	if !ok {
		return nil, apperror.NotFound("media.repo.get", "asset not found")
	}
	out := clone(asset)
	return &out, nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]media.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []media.Asset{}
	for _, a := range r.assets {
		if a.OwnerID == ownerID {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Repository) SetContent(ctx context.Context, id, contentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, ok := r.assets[id]
	if !ok {
		return apperror.NotFound("media.repo.set_content", "asset not found")
	}
	asset.ContentID = &contentID
	r.assets[id] = asset
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assets[id]; !ok {
		return apperror.NotFound("media.repo.delete", "asset not found")
	}
	delete(r.assets, id)
	return nil
}

func clone(a media.Asset) media.Asset {
	if a.ContentID != nil {
		id := *a.ContentID
		a.ContentID = &id
	}
	return a
}
