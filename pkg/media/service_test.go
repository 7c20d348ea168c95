package media_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/eventbus"
	busmemory "github.com/tendant/simple-social/pkg/eventbus/memory"
	"github.com/tendant/simple-social/pkg/media"
	repomemory "github.com/tendant/simple-social/pkg/media/repo/memory"
	storagememory "github.com/tendant/simple-social/pkg/media/storage/memory"
)

type fixture struct {
	svc   media.Service
	repo  *repomemory.Repository
	store *storagememory.Backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{repo: repomemory.New(), store: storagememory.New()}
	svc, err := media.New(media.WithRepository(f.repo), media.WithBlobStore(f.store))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) upload(t *testing.T, owner uuid.UUID, name string) *media.Asset {
	t.Helper()
	data := "data for " + name
	a, err := f.svc.Upload(context.Background(), media.UploadRequest{
		OwnerID:      owner,
		OriginalName: name,
		ContentType:  "image/png",
		Size:         int64(len(data)),
		Reader:       strings.NewReader(data),
	})
	require.NoError(t, err)
	return a
}

func deletedEnvelope(contentID, owner uuid.UUID, assets ...uuid.UUID) eventbus.Envelope {
	return eventbus.Envelope{
		RoutingKey: eventbus.RoutingContentDeleted,
		Payload:    eventbus.ContentDeleted{ContentID: contentID, OwnerID: owner, AssetIDs: assets}.Payload(),
	}
}

func createdEnvelope(contentID, owner uuid.UUID, assets ...uuid.UUID) eventbus.Envelope {
	return eventbus.Envelope{
		RoutingKey: eventbus.RoutingContentCreated,
		Payload: eventbus.ContentCreated{
			ContentID: contentID,
			OwnerID:   owner,
			Body:      "post",
			CreatedAt: time.Now(),
			AssetIDs:  assets,
		}.Payload(),
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := media.New(media.WithBlobStore(storagememory.New()))
	assert.Error(t, err)
	_, err = media.New(media.WithRepository(repomemory.New()))
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("StoresBlobAndRecord", func(t *testing.T) {
		f := newFixture(t)
		owner := uuid.New()
		a := f.upload(t, owner, "Photo.PNG")

		assert.Equal(t, owner, a.OwnerID)
		assert.True(t, strings.HasPrefix(a.Locator, "media/"+owner.String()+"/"))
		assert.True(t, strings.HasSuffix(a.Locator, ".png"))
		assert.Equal(t, "memory://"+a.Locator, a.URL)
		assert.True(t, f.store.Has(a.Locator))

		got, err := f.svc.GetAsset(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Photo.PNG", got.OriginalName)
	})

	t.Run("TooLarge", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Upload(ctx, media.UploadRequest{
			OwnerID: uuid.New(),
			Size:    media.MaxUploadSize + 1,
			Reader:  bytes.NewReader(nil),
		})
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("NoFile", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Upload(ctx, media.UploadRequest{OwnerID: uuid.New()})
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("ListScopedToOwner", func(t *testing.T) {
		f := newFixture(t)
		owner := uuid.New()
		f.upload(t, owner, "a.jpg")
		f.upload(t, owner, "b.jpg")
		f.upload(t, uuid.New(), "c.jpg")

		assets, err := f.svc.ListAssets(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, assets, 2)
	})
}

func TestHandleContentDeleted(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesRemoteThenLocal", func(t *testing.T) {
		f := newFixture(t)
		owner := uuid.New()
		a := f.upload(t, owner, "a.png")

		require.NoError(t, f.svc.HandleContentDeleted(ctx, deletedEnvelope(uuid.New(), owner, a.ID)))

		assert.False(t, f.store.Has(a.Locator))
		_, err := f.repo.Get(ctx, a.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("OneFailureDoesNotStopOthers", func(t *testing.T) {
		f := newFixture(t)
		owner := uuid.New()
		a := f.upload(t, owner, "a.png")
		b := f.upload(t, owner, "b.png")
		c := f.upload(t, owner, "c.png")
		f.store.FailDelete(b.Locator, errors.New("remote store timeout"))

		err := f.svc.HandleContentDeleted(ctx, deletedEnvelope(uuid.New(), owner, a.ID, b.ID, c.ID))
		require.NoError(t, err)

		_, err = f.repo.Get(ctx, a.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
		_, err = f.repo.Get(ctx, c.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)

		// b keeps its record since its blob could not be removed.
		_, err = f.repo.Get(ctx, b.ID)
		assert.NoError(t, err)
		assert.True(t, f.store.Has(b.Locator))
	})

	t.Run("RedeliveryIsNoOp", func(t *testing.T) {
		f := newFixture(t)
		owner := uuid.New()
		a := f.upload(t, owner, "a.png")
		env := deletedEnvelope(uuid.New(), owner, a.ID)

		require.NoError(t, f.svc.HandleContentDeleted(ctx, env))
		require.NoError(t, f.svc.HandleContentDeleted(ctx, env))
	})

	t.Run("UnknownAssetsSkipped", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.HandleContentDeleted(ctx, deletedEnvelope(uuid.New(), uuid.New(), uuid.New(), uuid.New())))
	})

	t.Run("ForeignAssetNotDeleted", func(t *testing.T) {
		f := newFixture(t)
		victim := f.upload(t, uuid.New(), "theirs.png")

		require.NoError(t, f.svc.HandleContentDeleted(ctx, deletedEnvelope(uuid.New(), uuid.New(), victim.ID)))

		_, err := f.repo.Get(ctx, victim.ID)
		assert.NoError(t, err)
		assert.True(t, f.store.Has(victim.Locator))
	})

	t.Run("AssetAttachedElsewhereKept", func(t *testing.T) {
		f := newFixture(t)
		owner := uuid.New()
		a := f.upload(t, owner, "a.png")
		first, second := uuid.New(), uuid.New()
		require.NoError(t, f.svc.HandleContentCreated(ctx, createdEnvelope(first, owner, a.ID)))
		require.NoError(t, f.svc.HandleContentCreated(ctx, createdEnvelope(second, owner, a.ID)))

		require.NoError(t, f.svc.HandleContentDeleted(ctx, deletedEnvelope(second, owner, a.ID)))
		got, err := f.repo.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, f.store.Has(a.Locator))
		require.NotNil(t, got.ContentID)
		assert.Equal(t, first, *got.ContentID)

		require.NoError(t, f.svc.HandleContentDeleted(ctx, deletedEnvelope(first, owner, a.ID)))
		_, err = f.repo.Get(ctx, a.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
		assert.False(t, f.store.Has(a.Locator))
	})

	t.Run("MalformedPayloadDiscarded", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.HandleContentDeleted(ctx, eventbus.Envelope{
			RoutingKey: eventbus.RoutingContentDeleted,
			Payload:    eventbus.Payload{"contentId": 42},
		})
		require.Error(t, err)
		assert.True(t, eventbus.IsDiscard(err))
	})
}

func TestHandleContentCreated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := uuid.New()
	mine := f.upload(t, owner, "mine.png")
	theirs := f.upload(t, uuid.New(), "theirs.png")
	contentID := uuid.New()

	env := createdEnvelope(contentID, owner, mine.ID, theirs.ID, uuid.New())
	require.NoError(t, f.svc.HandleContentCreated(ctx, env))
	require.NoError(t, f.svc.HandleContentCreated(ctx, env))

	got, err := f.repo.Get(ctx, mine.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ContentID)
	assert.Equal(t, contentID, *got.ContentID)

	other, err := f.repo.Get(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Nil(t, other.ContentID)

	// A second item cannot take over an attached asset.
	require.NoError(t, f.svc.HandleContentCreated(ctx, createdEnvelope(uuid.New(), owner, mine.ID)))
	got, _ = f.repo.Get(ctx, mine.ID)
	assert.Equal(t, contentID, *got.ContentID)
}

func TestSubscribe_CascadeThroughBus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bus := busmemory.New(busmemory.WithDispatchConfig(eventbus.DispatchConfig{HandlerTimeout: time.Second}))
	t.Cleanup(func() { _ = bus.Close() })
	require.NoError(t, media.Subscribe(ctx, bus, f.svc))

	owner := uuid.New()
	a := f.upload(t, owner, "a.png")
	contentID := uuid.New()

	require.NoError(t, bus.Publish(ctx, eventbus.RoutingContentCreated, createdEnvelope(contentID, owner, a.ID).Payload))
	require.Eventually(t, func() bool {
		got, err := f.repo.Get(ctx, a.ID)
		return err == nil && got.ContentID != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, eventbus.RoutingContentDeleted, deletedEnvelope(contentID, owner, a.ID).Payload))
	require.Eventually(t, func() bool {
		_, err := f.repo.Get(ctx, a.ID)
		return errors.Is(err, apperror.ErrNotFound)
	}, time.Second, 5*time.Millisecond)
	assert.False(t, f.store.Has(a.Locator))
}
