// Package memory is an in-process search.Index using term-frequency scoring.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/search"
)

type document struct {
	search.Projection
	terms map[string]int
}

// DefaultTombstoneRetention matches the Mongo index default.
const DefaultTombstoneRetention = 7 * 24 * time.Hour

// Index implements search.Index.
type Index struct {
	mu         sync.RWMutex
	docs       map[uuid.UUID]document
	tombstones map[uuid.UUID]time.Time // removal time
	retention  time.Duration
	now        func() time.Time
}

type Option func(*Index)

// WithTombstoneRetention bounds how long a removed id blocks late inserts.
func WithTombstoneRetention(d time.Duration) Option {
	return func(ix *Index) {
		if d > 0 {
			ix.retention = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(ix *Index) {
		ix.now = now
	}
}

func New(options ...Option) *Index {
	ix := &Index{
		docs:       make(map[uuid.UUID]document),
		tombstones: make(map[uuid.UUID]time.Time),
		retention:  DefaultTombstoneRetention,
		now:        time.Now,
	}
	for _, option := range options {
		option(ix)
	}
	return ix
}

func (ix *Index) Insert(ctx context.Context, p search.Projection) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if at, removed := ix.tombstones[p.ContentID]; removed {
		if ix.now().Sub(at) < ix.retention {
			return false, nil
		}
		delete(ix.tombstones, p.ContentID)
	}
	if _, exists := ix.docs[p.ContentID]; exists {
		return false, nil
	}
	terms := make(map[string]int)
	for _, t := range tokenize(p.Text) {
		terms[t]++
	}
	ix.docs[p.ContentID] = document{Projection: p, terms: terms}
	return true, nil
}

func (ix *Index) Remove(ctx context.Context, contentID uuid.UUID) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	now := ix.now()
	ix.prune(now)
	ix.tombstones[contentID] = now
	_, existed := ix.docs[contentID]
	delete(ix.docs, contentID)
	return existed, nil
}

func (ix *Index) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	terms := tokenize(query)

	ix.mu.RLock()
	var results []search.Result
	for _, doc := range ix.docs {
		var score float64
		for _, t := range terms {
			score += float64(doc.terms[t])
		}
		if score > 0 {
			results = append(results, search.Result{Projection: doc.Projection, Score: score})
		}
	}
	ix.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// prune drops expired tombstones. Callers hold ix.mu.
func (ix *Index) prune(now time.Time) {
	for id, at := range ix.tombstones {
		if now.Sub(at) >= ix.retention {
			delete(ix.tombstones, id)
		}
	}
}

// Tombstones returns the number of removed ids still blocking inserts.
func (ix *Index) Tombstones() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.tombstones)
}

// Len returns the number of indexed projections.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
