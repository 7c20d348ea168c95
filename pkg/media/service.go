package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/eventbus"
)

type service struct {
	repository Repository
	blobStore  BlobStore
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the service.
type Option func(*service)

func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		s.logger = l
	}
}

// New creates the media service. A repository and a blob store are required.
func New(options ...Option) (Service, error) {
	s := &service{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	return s, nil
}

// Subscribe binds the service's consumers to the bus.
func Subscribe(ctx context.Context, sub eventbus.Subscriber, svc Service) error {
	if err := sub.Subscribe(ctx, eventbus.RoutingContentDeleted, svc.HandleContentDeleted); err != nil {
		return err
	}
	return sub.Subscribe(ctx, eventbus.RoutingContentCreated, svc.HandleContentCreated)
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (*Asset, error) {
	const op = "media.upload"

	if req.OwnerID == uuid.Nil {
		return nil, apperror.Auth(op, "owner is required", nil)
	}
	if req.Reader == nil {
		return nil, apperror.Validation(op, "no file found")
	}
	if req.Size > MaxUploadSize {
		return nil, apperror.Validation(op, fmt.Sprintf("file exceeds %d bytes", MaxUploadSize))
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	name := SanitizeFilename(req.OriginalName)
	id := uuid.New()
	key := objectKey(req.OwnerID, id, name)
	err := s.blobStore.Upload(ctx, UploadParams{
		Key:         key,
		ContentType: contentType,
		Size:        req.Size,
		Reader:      req.Reader,
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	asset := &Asset{
		ID:           id,
		OwnerID:      req.OwnerID,
		Locator:      key,
		URL:          s.blobStore.URL(key),
		ContentType:  contentType,
		OriginalName: name,
		Size:         req.Size,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repository.Create(ctx, asset); err != nil {
		if delErr := s.blobStore.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned blob", "key", key, "err", delErr)
		}
		return nil, wrap(op, err)
	}

	s.logger.Info("Asset uploaded", "asset_id", asset.ID, "owner_id", asset.OwnerID, "size", asset.Size)
	return asset, nil
}

func (s *service) GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error) {
	asset, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, wrap("media.get", err)
	}
	return asset, nil
}

func (s *service) ListAssets(ctx context.Context, ownerID uuid.UUID) ([]Asset, error) {
	assets, err := s.repository.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, wrap("media.list", err)
	}
	return assets, nil
}

// HandleContentDeleted removes the assets referenced by a deleted item.
// Each asset is handled on its own: a failure is logged and the rest still
// run. Assets already gone are skipped, so redelivery is harmless.
func (s *service) HandleContentDeleted(ctx context.Context, env eventbus.Envelope) error {
	ev, err := eventbus.DecodeContentDeleted(env.Payload)
	if err != nil {
		return err
	}

	var failed int
	for _, id := range ev.AssetIDs {
		if err := s.deleteAsset(ctx, id, ev); err != nil {
			failed++
			s.logger.Error("Failed to delete asset", "asset_id", id, "content_id", ev.ContentID, "err", err)
		}
	}

	s.logger.Info("Asset cleanup finished", "content_id", ev.ContentID, "assets", len(ev.AssetIDs), "failed", failed)
	return nil
}

func (s *service) deleteAsset(ctx context.Context, id uuid.UUID, ev eventbus.ContentDeleted) error {
	asset, err := s.repository.Get(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		s.logger.Debug("Asset already deleted", "asset_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if asset.OwnerID != ev.OwnerID {
		s.logger.Warn("Skipping asset owned by another user", "asset_id", id, "owner_id", asset.OwnerID, "content_owner_id", ev.OwnerID)
		return nil
	}
	if asset.ContentID != nil && *asset.ContentID != ev.ContentID {
		s.logger.Warn("Skipping asset attached to other content", "asset_id", id, "attached_to", *asset.ContentID, "content_id", ev.ContentID)
		return nil
	}

	if err := s.blobStore.Delete(ctx, asset.Locator); err != nil {
		return fmt.Errorf("remote delete: %w", err)
	}
	if err := s.repository.Delete(ctx, id); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("local delete: %w", err)
	}

	s.logger.Info("Deleted asset of deleted content", "asset_id", id, "content_id", ev.ContentID)
	return nil
}

// HandleContentCreated records the referencing item on each asset owned by
// the item's author.
func (s *service) HandleContentCreated(ctx context.Context, env eventbus.Envelope) error {
	ev, err := eventbus.DecodeContentCreated(env.Payload)
	if err != nil {
		return err
	}

	for _, id := range ev.AssetIDs {
		asset, err := s.repository.Get(ctx, id)
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("Content references unknown asset", "asset_id", id, "content_id", ev.ContentID)
			continue
		}
		if err != nil {
			return err
		}
		switch {
		case asset.OwnerID != ev.OwnerID:
			s.logger.Warn("Content references asset of another user", "asset_id", id, "content_id", ev.ContentID)
		case asset.ContentID == nil:
			if err := s.repository.SetContent(ctx, id, ev.ContentID); err != nil {
				return err
			}
		case *asset.ContentID != ev.ContentID:
			s.logger.Warn("Asset already attached to other content", "asset_id", id, "attached_to", *asset.ContentID)
		}
	}
	return nil
}

// objectKey builds the remote key: media/<owner>/<asset id><ext>. name must
// already be sanitized.
func objectKey(ownerID, id uuid.UUID, name string) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 10 || strings.ContainsAny(ext, " -") {
		ext = ""
	}
	return fmt.Sprintf("media/%s/%s%s", ownerID, id, ext)
}

func wrap(op string, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(op, err)
}
