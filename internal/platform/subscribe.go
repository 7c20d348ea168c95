package platform

import (
	"context"
	"log/slog"
	"time"

	"github.com/tendant/simple-social/pkg/eventbus"
)

// retryingSubscriber keeps trying a failed Subscribe in the background so a
// consumer can start before the broker is reachable.
type retryingSubscriber struct {
	sub      eventbus.Subscriber
	interval time.Duration
	logger   *slog.Logger
}

// RetryingSubscriber wraps sub so Subscribe never fails on transport errors.
// A failed subscription is retried every interval until it succeeds or ctx
// is done.
func RetryingSubscriber(sub eventbus.Subscriber, interval time.Duration, logger *slog.Logger) eventbus.Subscriber {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &retryingSubscriber{sub: sub, interval: interval, logger: logger}
}

func (s *retryingSubscriber) Subscribe(ctx context.Context, routingKey string, h eventbus.Handler) error {
	err := s.sub.Subscribe(ctx, routingKey, h)
	if err == nil {
		return nil
	}
	s.logger.Warn("Subscribe failed, retrying in background", "routing_key", routingKey, "err", err)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}
			if err := s.sub.Subscribe(ctx, routingKey, h); err != nil {
				s.logger.Warn("Subscribe retry failed", "routing_key", routingKey, "err", err)
				continue
			}
			s.logger.Info("Subscribed", "routing_key", routingKey)
			return
		}
	}()
	return nil
}
