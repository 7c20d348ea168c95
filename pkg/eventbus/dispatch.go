package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-social/pkg/apperror"
)

// Delivery is one received message together with its acknowledgement
// controls. Transports adapt their native delivery type to it.
type Delivery interface {
	RoutingKey() string
	Body() []byte
	Ack() error
	Nack(requeue bool) error
}

// Result is what Dispatch did with a delivery.
type Result int

const (
	Acked Result = iota
	Discarded
	Requeued
)

func (r Result) String() string {
	switch r {
	case Acked:
		return "acked"
	case Discarded:
		return "discarded"
	default:
		return "requeued"
	}
}

// DispatchConfig controls how Dispatch runs a handler.
type DispatchConfig struct {
	Logger          *slog.Logger
	HandlerTimeout  time.Duration // per invocation, 0 disables
	RedeliveryDelay time.Duration // wait before requeueing a failed delivery
}

const (
	DefaultHandlerTimeout  = 30 * time.Second
	DefaultRedeliveryDelay = time.Second
)

// DefaultDispatchConfig returns the config used when a transport is not told
// otherwise.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Logger:          slog.Default(),
		HandlerTimeout:  DefaultHandlerTimeout,
		RedeliveryDelay: DefaultRedeliveryDelay,
	}
}

// Dispatch decodes d, runs h and settles the delivery: ack on success or on a
// discarded payload, nack with requeue on any other failure. A panicking
// handler is treated as a failed one.
func Dispatch(ctx context.Context, d Delivery, h Handler, cfg DispatchConfig) Result {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	key := d.RoutingKey()

	payload, err := Unmarshal(d.Body())
	if err != nil {
		logger.Warn("Discarding undecodable event", "routing_key", key, "err", err)
		settle(logger, key, d.Ack())
		return Discarded
	}

	err = invoke(ctx, h, Envelope{RoutingKey: key, Payload: payload}, cfg.HandlerTimeout)
	switch {
	case err == nil:
		settle(logger, key, d.Ack())
		return Acked
	case IsDiscard(err):
		logger.Warn("Discarding event", "routing_key", key, "err", err)
		settle(logger, key, d.Ack())
		return Discarded
	default:
		logger.Error("Event handler failed, leaving for redelivery", "routing_key", key, "err", apperror.Handler(key, err))
		if cfg.RedeliveryDelay > 0 {
			t := time.NewTimer(cfg.RedeliveryDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
			}
		}
		settle(logger, key, d.Nack(true))
		return Requeued
	}
}

func invoke(ctx context.Context, h Handler, env Envelope, timeout time.Duration) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, env)
}

func settle(logger *slog.Logger, key string, err error) {
	if err != nil {
		logger.Warn("Failed to settle delivery", "routing_key", key, "err", err)
	}
}
