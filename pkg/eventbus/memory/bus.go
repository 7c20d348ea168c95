// Package memory is an in-process topic exchange implementing eventbus.Bus.
//
// It keeps the delivery contract of the broker-backed bus: each subscription
// owns a private queue drained by one goroutine, messages are acknowledged
// only when the handler succeeds and failed messages are requeued.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/eventbus"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("event bus closed")

// Bus implements eventbus.Bus in memory.
type Bus struct {
	mu     sync.Mutex
	queues []*queue
	closed bool
	cfg    eventbus.DispatchConfig
	wg     sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithDispatchConfig overrides the handler timeout, redelivery delay and logger.
func WithDispatchConfig(cfg eventbus.DispatchConfig) Option {
	return func(b *Bus) {
		b.cfg = cfg
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{cfg: eventbus.DefaultDispatchConfig()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, routingKey string, payload eventbus.Payload) error {
	body, err := eventbus.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return apperror.Transport("eventbus.publish", ErrClosed)
	}
	for _, q := range b.queues {
		if eventbus.MatchTopic(q.pattern, routingKey) {
			q.push(message{key: routingKey, body: body})
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, routingKey string, h eventbus.Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return apperror.Transport("eventbus.subscribe", ErrClosed)
	}
	q := newQueue(routingKey)
	b.queues = append(b.queues, q)
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer b.unbind(q)
		for {
			msg, ok := q.pop(ctx)
			if !ok {
				return
			}
			eventbus.Dispatch(ctx, &delivery{q: q, msg: msg}, h, b.cfg)
		}
	}()
	return nil
}

// Close stops every subscription and waits for in-flight handlers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	queues := append([]*queue(nil), b.queues...)
	b.mu.Unlock()

	for _, q := range queues {
		q.close()
	}
	b.wg.Wait()
	return nil
}

// Pending returns the number of undelivered messages across all queues.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, q := range b.queues {
		n += q.len()
	}
	return n
}

func (b *Bus) unbind(q *queue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, other := range b.queues {
		if other == q {
			b.queues = append(b.queues[:i], b.queues[i+1:]...)
			return
		}
	}
}

type message struct {
	key  string
	body []byte
}

// queue is an unbounded FIFO so that Publish never blocks on a slow consumer.
type queue struct {
	pattern string
	mu      sync.Mutex
	items   []message
	notify  chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newQueue(pattern string) *queue {
	return &queue{
		pattern: pattern,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (q *queue) push(m message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) pop(ctx context.Context) (message, bool) {
	for {
		select {
		case <-q.done:
			return message{}, false
		default:
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			m := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return m, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
			return message{}, false
		case <-ctx.Done():
			return message{}, false
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) close() {
	q.once.Do(func() { close(q.done) })
}

type delivery struct {
	q   *queue
	msg message
}

func (d *delivery) RoutingKey() string { return d.msg.key }
func (d *delivery) Body() []byte       { return d.msg.body }
func (d *delivery) Ack() error         { return nil }

func (d *delivery) Nack(requeue bool) error {
	if requeue {
		d.q.push(d.msg)
	}
	return nil
}
