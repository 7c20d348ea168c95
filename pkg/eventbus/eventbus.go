package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Payload is a flat mapping of named fields. Its schema depends on the
// routing key.
type Payload map[string]any

// Envelope is a single message as seen by a handler. It carries no message id
// and no delivery metadata.
type Envelope struct {
	RoutingKey string
	Payload    Payload
}

// Handler processes one envelope. Returning nil acknowledges the delivery.
type Handler func(ctx context.Context, env Envelope) error

// Publisher publishes payloads to the topic exchange.
type Publisher interface {
	// Publish returns once the broker accepted the message. It does not wait
	// for any consumer.
	Publish(ctx context.Context, routingKey string, payload Payload) error
}

// Subscriber binds handlers to routing keys.
type Subscriber interface {
	// Subscribe binds a private queue to routingKey and starts delivering to h
	// until ctx is cancelled. Deliveries for one subscription are handled one
	// at a time.
	Subscribe(ctx context.Context, routingKey string, h Handler) error
}

// Bus is both a publisher and a subscriber.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Marshal encodes a payload for the wire.
func Marshal(p Payload) ([]byte, error) {
	if p == nil {
		p = Payload{}
	}
	return json.Marshal(p)
}

// Unmarshal decodes a wire body into a payload.
func Unmarshal(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if p == nil {
		return nil, errors.New("decode payload: not a JSON object")
	}
	return p, nil
}

type discardError struct {
	err error
}

func (e *discardError) Error() string { return "discard: " + e.err.Error() }
func (e *discardError) Unwrap() error { return e.err }

// Discard marks err as permanent: the delivery is acknowledged and dropped
// instead of being redelivered.
func Discard(err error) error {
	if err == nil {
		return nil
	}
	return &discardError{err: err}
}

// IsDiscard reports whether err was produced by Discard.
func IsDiscard(err error) bool {
	var d *discardError
	return errors.As(err, &d)
}
