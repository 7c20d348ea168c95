// Package cache defines the key-value store used for read-through caching
// and for the gateway's rate-limit counters.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// Store is a TTL key-value store. Implementations return apperror transport
// errors when the backend cannot be reached.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix removes every key starting with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
	// Incr increments the counter at key and returns the new value. The key
	// expires ttl after the last increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

const (
	ItemPrefix      = "item:"
	ListPrefix      = "list:"
	RateLimitPrefix = "ratelimit:"
)

// ItemKey is the key of a single content item view.
func ItemKey(id uuid.UUID) string {
	return ItemPrefix + id.String()
}

// ListKey is the key of one page of the content listing.
func ListKey(page, pageSize int) string {
	return fmt.Sprintf("%s%d:%d", ListPrefix, page, pageSize)
}

// RateLimitKey is the counter key for client in the given fixed window.
func RateLimitKey(client string, window int64) string {
	return fmt.Sprintf("%s%s:%d", RateLimitPrefix, strings.ReplaceAll(client, ":", "_"), window)
}

// Tombstone is written in place of an invalidated item. Readers treat it as
// a miss, and SetNX cannot overwrite it until it expires.
var Tombstone = []byte("\x00tombstone")

// IsTombstone reports whether v is the invalidation marker.
func IsTombstone(v []byte) bool {
	return bytes.Equal(v, Tombstone)
}
