package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/content"
)

// Repository is an in-memory content.Repository.
type Repository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]content.Item

	// failNext makes the next write fail, for tests.
	failNext error
}

func New() *Repository {
	return &Repository{items: make(map[uuid.UUID]content.Item)}
}

// FailNextWrite makes the next Create or DeleteOwned return err.
func (r *Repository) FailNextWrite(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *Repository) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *Repository) Create(ctx context.Context, item *content.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, exists := r.items[item.ID]; exists {
		return apperror.Conflict("content.repo.create", "content already exists")
	}
	r.items[item.ID] = clone(*item)
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*content.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, apperror.NotFound("content.repo.get", "content not found")
	}
	out := clone(item)
	return &out, nil
}

func (r *Repository) List(ctx context.Context, offset, limit int) ([]content.Item, int, error) {
	r.mu.RLock()
	all := make([]content.Item, 0, len(r.items))
	for _, item := range r.items {
		all = append(all, clone(item))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() > all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []content.Item{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *Repository) DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) (*content.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	item, ok := r.items[id]
	if !ok || item.OwnerID != ownerID {
		return nil, apperror.NotFound("content.repo.delete", "content not found")
	}
	delete(r.items, id)
	return &item, nil
}

func clone(item content.Item) content.Item {
	item.AssetIDs = append([]uuid.UUID{}, item.AssetIDs...)
	return item
}
