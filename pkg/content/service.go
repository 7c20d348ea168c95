package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/cache"
	"github.com/tendant/simple-social/pkg/eventbus"
)

const (
	DefaultItemTTL      = time.Hour
	DefaultListTTL      = 5 * time.Minute
	DefaultTombstoneTTL = 30 * time.Second

	// DefaultSideEffectTimeout bounds each side effect of a committed write.
	DefaultSideEffectTimeout = 5 * time.Second
)

type service struct {
	repository   Repository
	publisher    eventbus.Publisher
	cache        cache.Store
	logger       *slog.Logger
	itemTTL      time.Duration
	listTTL      time.Duration
	tombstoneTTL time.Duration
	effectTTL    time.Duration
	now          func() time.Time
}

// Option configures the service.
type Option func(*service)

func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithPublisher sets where content.created and content.deleted go.
func WithPublisher(p eventbus.Publisher) Option {
	return func(s *service) {
		s.publisher = p
	}
}

// WithCache enables read-through caching. Without it every read hits the
// repository.
func WithCache(c cache.Store) Option {
	return func(s *service) {
		s.cache = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		s.logger = l
	}
}

// WithTTLs overrides the item and list staleness windows. Zero keeps the
// default.
func WithTTLs(item, list time.Duration) Option {
	return func(s *service) {
		if item > 0 {
			s.itemTTL = item
		}
		if list > 0 {
			s.listTTL = list
		}
	}
}

// WithTombstoneTTL sets how long a deleted item's cache key stays blocked.
// It must exceed the longest store read a concurrent reader may be in.
func WithTombstoneTTL(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.tombstoneTTL = d
		}
	}
}

// WithSideEffectTimeout bounds each of the publish and the cache
// invalidation that follow a committed write.
func WithSideEffectTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.effectTTL = d
		}
	}
}

// WithClock replaces time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates the content service. A repository and a publisher are required.
func New(options ...Option) (Service, error) {
	s := &service{
		logger:       slog.Default(),
		itemTTL:      DefaultItemTTL,
		listTTL:      DefaultListTTL,
		tombstoneTTL: DefaultTombstoneTTL,
		effectTTL:    DefaultSideEffectTimeout,
		now:          time.Now,
	}
	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	return s, nil
}

func (s *service) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, Outcome, error) {
	const op = "content.create"

	body, err := validateCreate(op, req)
	if err != nil {
		return nil, Outcome{}, err
	}

	item := &Item{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Body:      body,
		AssetIDs:  append([]uuid.UUID{}, req.AssetIDs...),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repository.Create(ctx, item); err != nil {
		return nil, Outcome{}, wrap(op, err)
	}

	// The write is committed, so a caller that hangs up must not cancel
	// its side effects.
	ctx = context.WithoutCancel(ctx)

	var out Outcome
	out.Published = s.publish(ctx, eventbus.RoutingContentCreated, eventbus.ContentCreated{
		ContentID: item.ID,
		OwnerID:   item.OwnerID,
		Body:      item.Body,
		CreatedAt: item.CreatedAt,
		AssetIDs:  item.AssetIDs,
	}.Payload())
	out.Invalidated = s.invalidate(ctx, item.ID, false)

	s.logger.Info("Content created", "content_id", item.ID, "owner_id", item.OwnerID, "degraded", out.Degraded())
	return item, out, nil
}

func (s *service) DeleteItem(ctx context.Context, id, ownerID uuid.UUID) (Outcome, error) {
	const op = "content.delete"

	item, err := s.repository.DeleteOwned(ctx, id, ownerID)
	if err != nil {
		return Outcome{}, wrap(op, err)
	}

	ctx = context.WithoutCancel(ctx)

	var out Outcome
	out.Published = s.publish(ctx, eventbus.RoutingContentDeleted, eventbus.ContentDeleted{
		ContentID: item.ID,
		OwnerID:   item.OwnerID,
		AssetIDs:  item.AssetIDs,
	}.Payload())
	out.Invalidated = s.invalidate(ctx, item.ID, true)

	s.logger.Info("Content deleted", "content_id", item.ID, "owner_id", item.OwnerID, "degraded", out.Degraded())
	return out, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	const op = "content.get"
	key := cache.ItemKey(id)

	populate := s.cache != nil
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		switch {
		case err == nil && cache.IsTombstone(raw):
			populate = false
		case err == nil:
			var item Item
			if err := json.Unmarshal(raw, &item); err == nil {
				return &item, nil
			}
			s.logger.Warn("Dropping undecodable cache entry", "key", key)
		case errors.Is(err, cache.ErrMiss):
		default:
			s.logger.Warn("Cache read failed, reading from store", "key", key, "err", err)
			populate = false
		}
	}

	item, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, wrap(op, err)
	}
	if populate {
		s.fill(ctx, key, item, s.itemTTL)
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context, page, pageSize int) (*ListResult, error) {
	const op = "content.list"

	if page < 1 {
		return nil, apperror.Validation(op, "page must be at least 1")
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, apperror.Validation(op, fmt.Sprintf("limit must be between 1 and %d", MaxPageSize))
	}
	if page-1 > math.MaxInt/pageSize {
		return nil, apperror.Validation(op, "page is out of range")
	}
	key := cache.ListKey(page, pageSize)

	populate := s.cache != nil
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var res ListResult
			if err := json.Unmarshal(raw, &res); err == nil {
				return &res, nil
			}
			s.logger.Warn("Dropping undecodable cache entry", "key", key)
		case errors.Is(err, cache.ErrMiss):
		default:
			s.logger.Warn("Cache read failed, reading from store", "key", key, "err", err)
			populate = false
		}
	}

	items, total, err := s.repository.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, wrap(op, err)
	}
	res := &ListResult{
		Items:       items,
		CurrentPage: page,
		PageSize:    pageSize,
		TotalPages:  (total + pageSize - 1) / pageSize,
		TotalItems:  total,
	}
	if res.Items == nil {
		res.Items = []Item{}
	}
	if populate {
		s.fill(ctx, key, res, s.listTTL)
	}
	return res, nil
}

func (s *service) publish(ctx context.Context, routingKey string, payload eventbus.Payload) bool {
	ctx, cancel := context.WithTimeout(ctx, s.effectTTL)
	defer cancel()
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.logger.Error("Failed to publish event", "routing_key", routingKey, "err", err)
		return false
	}
	return true
}

// invalidate drops every cached view that may contain the item. For a
// deleted item the item key is overwritten with a tombstone so that a reader
// that loaded the item before the delete cannot put it back.
func (s *service) invalidate(ctx context.Context, id uuid.UUID, deleted bool) bool {
	if s.cache == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, s.effectTTL)
	defer cancel()

	ok := true
	if deleted {
		if err := s.cache.Set(ctx, cache.ItemKey(id), cache.Tombstone, s.tombstoneTTL); err != nil {
			s.logger.Error("Failed to invalidate cached item", "content_id", id, "err", err)
			ok = false
		}
	}
	if err := s.cache.DeleteByPrefix(ctx, cache.ListPrefix); err != nil {
		s.logger.Error("Failed to invalidate cached listings", "err", err)
		ok = false
	}
	return ok
}

func (s *service) fill(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("Failed to encode cache entry", "key", key, "err", err)
		return
	}
	if _, err := s.cache.SetNX(ctx, key, raw, ttl); err != nil {
		s.logger.Warn("Failed to populate cache", "key", key, "err", err)
	}
}

func validateCreate(op string, req CreateItemRequest) (string, error) {
	if req.OwnerID == uuid.Nil {
		return "", apperror.Auth(op, "owner is required", nil)
	}
	body := strings.TrimSpace(req.Body)
	n := utf8.RuneCountInString(body)
	if n < MinBodyLength || n > MaxBodyLength {
		return "", apperror.Validation(op, fmt.Sprintf("body must be between %d and %d characters", MinBodyLength, MaxBodyLength))
	}
	if len(req.AssetIDs) > MaxAssetsPerItem {
		return "", apperror.Validation(op, fmt.Sprintf("at most %d assets per item", MaxAssetsPerItem))
	}
	for _, id := range req.AssetIDs {
		if id == uuid.Nil {
			return "", apperror.Validation(op, "asset id must not be empty")
		}
	}
	return body, nil
}

// wrap keeps classified errors and marks everything else internal.
func wrap(op string, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(op, err)
}
