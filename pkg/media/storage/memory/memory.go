package memory

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tendant/simple-social/pkg/media"
)

type object struct {
	data        []byte
	contentType string
}

// Backend is an in-memory implementation of media.BlobStore
type Backend struct {
	mu         sync.RWMutex
	objects    map[string]object
	failDelete map[string]error
}

func New() *Backend {
	return &Backend{
		objects:    make(map[string]object),
		failDelete: make(map[string]error),
	}
}

func (b *Backend) Upload(ctx context.Context, params media.UploadParams) error {
	if params.Key == "" {
		return errors.New("object key is required")
	}
	data, err := io.ReadAll(params.Reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[params.Key] = object{data: data, contentType: params.ContentType}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.failDelete[key]; ok {
		return err
	}
	delete(b.objects, key)
	return nil
}

func (b *Backend) URL(key string) string {
	return "memory://" + key
}

// FailDelete makes every Delete of key return err.
func (b *Backend) FailDelete(key string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failDelete[key] = err
}

// Has reports whether key is stored.
func (b *Backend) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[key]
	return ok
}

// Data returns a copy of the stored bytes.
func (b *Backend) Data(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}
