package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/eventbus"
)

// Service answers queries and applies content events to the index.
type Service struct {
	index  Index
	logger *slog.Logger
}

// Option configures the service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func New(index Index, options ...Option) (*Service, error) {
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	s := &Service{index: index, logger: slog.Default()}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// Subscribe binds the service's consumers to the bus.
func (s *Service) Subscribe(ctx context.Context, sub eventbus.Subscriber) error {
	if err := sub.Subscribe(ctx, eventbus.RoutingContentCreated, s.HandleContentCreated); err != nil {
		return err
	}
	return sub.Subscribe(ctx, eventbus.RoutingContentDeleted, s.HandleContentDeleted)
}

// HandleContentCreated inserts the projection. Duplicates and items deleted
// before their creation event arrived are ignored.
func (s *Service) HandleContentCreated(ctx context.Context, env eventbus.Envelope) error {
	ev, err := eventbus.DecodeContentCreated(env.Payload)
	if err != nil {
		return err
	}

	inserted, err := s.index.Insert(ctx, Projection{
		ContentID: ev.ContentID,
		OwnerID:   ev.OwnerID,
		Text:      ev.Body,
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return err
	}
	if inserted {
		s.logger.Info("Indexed content", "content_id", ev.ContentID)
	} else {
		s.logger.Debug("Skipped indexing content", "content_id", ev.ContentID)
	}
	return nil
}

// HandleContentDeleted removes the projection; a missing one is not an error.
func (s *Service) HandleContentDeleted(ctx context.Context, env eventbus.Envelope) error {
	ev, err := eventbus.DecodeContentDeleted(env.Payload)
	if err != nil {
		return err
	}

	removed, err := s.index.Remove(ctx, ev.ContentID)
	if err != nil {
		return err
	}
	s.logger.Info("Removed content from index", "content_id", ev.ContentID, "was_indexed", removed)
	return nil
}

// Query validates the query and returns the top matches. limit <= 0 means
// DefaultLimit.
func (s *Service) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	const op = "search.query"

	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return []Result{}, apperror.Validation(op, "query is required")
	case utf8.RuneCountInString(text) > MaxQueryLength:
		return []Result{}, apperror.Validation(op, fmt.Sprintf("query must be at most %d characters", MaxQueryLength))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		return []Result{}, apperror.Validation(op, fmt.Sprintf("limit must be at most %d", MaxLimit))
	}

	results, err := s.index.Search(ctx, text, limit)
	if err != nil {
		var appErr *apperror.Error
		if !errors.As(err, &appErr) {
			err = apperror.Internal(op, err)
		}
		return []Result{}, err
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}
