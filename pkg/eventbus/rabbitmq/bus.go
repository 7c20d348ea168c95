// Package rabbitmq implements eventbus.Bus on an AMQP 0-9-1 topic exchange.
package rabbitmq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/eventbus"
)

const (
	DefaultExchange       = "social_events"
	DefaultDialTimeout    = 5 * time.Second
	DefaultPublishTimeout = 5 * time.Second
	DefaultRetryInterval  = 5 * time.Second
)

var ErrClosed = errors.New("rabbitmq bus closed")

// Config holds the broker settings.
type Config struct {
	URL            string
	Exchange       string
	DialTimeout    time.Duration
	PublishTimeout time.Duration
	// RetryInterval is the pause between reconnect attempts.
	RetryInterval time.Duration
	Dispatch      eventbus.DispatchConfig
	Logger        *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Dispatch.Logger == nil {
		c.Dispatch.Logger = c.Logger
	}
	return c
}

// Bus publishes and consumes through a single lazily established connection.
// The connection is re-dialed on the next use after a failure.
type Bus struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a bus without connecting. Use Connect to establish the
// connection eagerly.
func New(cfg Config) *Bus {
	cfg = cfg.withDefaults()
	return &Bus{
		cfg:    cfg,
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}
}

// Connect dials the broker, retrying every RetryInterval until it succeeds,
// ctx is cancelled or the bus is closed.
func (b *Bus) Connect(ctx context.Context) error {
	for {
		b.mu.Lock()
		_, err := b.connection()
		b.mu.Unlock()
		if err == nil {
			b.logger.Info("Connected to message broker", "exchange", b.cfg.Exchange)
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}
		b.logger.Warn("Message broker unavailable, retrying", "err", err, "retry_in", b.cfg.RetryInterval)
		if !b.sleep(ctx, b.cfg.RetryInterval) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrClosed
		}
	}
}

func (b *Bus) Publish(ctx context.Context, routingKey string, payload eventbus.Payload) error {
	body, err := eventbus.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.PublishTimeout)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.publishChannel()
	if err != nil {
		return apperror.Transport("eventbus.publish", err)
	}
	err = ch.PublishWithContext(ctx, b.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		b.reset()
		return apperror.Transport("eventbus.publish", err)
	}
	return nil
}

// Subscribe binds a private queue to routingKey and starts consuming it. The
// first bind is synchronous; after a connection loss the subscription keeps
// re-binding in the background until ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, routingKey string, h eventbus.Handler) error {
	ch, msgs, err := b.bind(routingKey)
	if err != nil {
		return apperror.Transport("eventbus.subscribe", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			b.consume(ctx, ch, msgs, h)
			if ctx.Err() != nil || b.isClosed() {
				return
			}
			b.logger.Warn("Subscription lost, re-binding", "routing_key", routingKey)
			for {
				if !b.sleep(ctx, b.cfg.RetryInterval) {
					return
				}
				ch, msgs, err = b.bind(routingKey)
				if err == nil {
					b.logger.Info("Subscription restored", "routing_key", routingKey)
					break
				}
				if errors.Is(err, ErrClosed) {
					return
				}
				b.logger.Warn("Failed to re-bind subscription", "routing_key", routingKey, "err", err)
			}
		}
	}()
	return nil
}

// Close stops all consumers and closes the connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	var err error
	if b.conn != nil {
		err = b.conn.Close()
		b.conn, b.pubCh = nil, nil
	}
	b.mu.Unlock()

	b.wg.Wait()
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

func (b *Bus) consume(ctx context.Context, ch *amqp.Channel, msgs <-chan amqp.Delivery, h eventbus.Handler) {
	defer ch.Close()
	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				return
			}
			eventbus.Dispatch(ctx, delivery{d}, h, b.cfg.Dispatch)
		case <-ctx.Done():
			return
		case <-b.done:
			return
		}
	}
}

func (b *Bus) bind(routingKey string) (*amqp.Channel, <-chan amqp.Delivery, error) {
	b.mu.Lock()
	conn, err := b.connection()
	b.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		b.resetIfClosed(conn)
		return nil, nil, err
	}
	msgs, err := b.declareConsumer(ch, routingKey)
	if err != nil {
		ch.Close()
		b.resetIfClosed(conn)
		return nil, nil, err
	}
	return ch, msgs, nil
}

func (b *Bus) declareConsumer(ch *amqp.Channel, routingKey string) (<-chan amqp.Delivery, error) {
	if err := b.declareExchange(ch); err != nil {
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, err
	}
	// Server-named, exclusive, auto-delete: one private queue per subscription.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, err
	}
	if err := ch.QueueBind(q.Name, routingKey, b.cfg.Exchange, false, nil); err != nil {
		return nil, err
	}
	return ch.Consume(q.Name, "", false, true, false, false, nil)
}

func (b *Bus) declareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(b.cfg.Exchange, amqp.ExchangeTopic, false, false, false, false, nil)
}

// connection returns the live connection, dialing if needed. Caller holds b.mu.
func (b *Bus) connection() (*amqp.Connection, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn, nil
	}
	b.conn, b.pubCh = nil, nil

	conn, err := amqp.DialConfig(b.cfg.URL, amqp.Config{
		Dial:      amqp.DefaultDial(b.cfg.DialTimeout),
		Heartbeat: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	b.conn = conn
	return conn, nil
}

// publishChannel returns the shared publishing channel. Caller holds b.mu.
func (b *Bus) publishChannel() (*amqp.Channel, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	if b.pubCh != nil && !b.pubCh.IsClosed() {
		return b.pubCh, nil
	}
	ch, err := conn.Channel()
	if err != nil {
		b.reset()
		return nil, err
	}
	if err := b.declareExchange(ch); err != nil {
		ch.Close()
		return nil, err
	}
	b.pubCh = ch
	return ch, nil
}

// reset drops the current connection so the next call re-dials. Caller holds b.mu.
func (b *Bus) reset() {
	if b.conn != nil {
		_ = b.conn.Close()
	}
	b.conn, b.pubCh = nil, nil
}

func (b *Bus) resetIfClosed(conn *amqp.Connection) {
	if !conn.IsClosed() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == conn {
		b.conn, b.pubCh = nil, nil
	}
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	}
}

// delivery adapts amqp.Delivery to eventbus.Delivery.
type delivery struct {
	d amqp.Delivery
}

func (d delivery) RoutingKey() string { return d.d.RoutingKey }
func (d delivery) Body() []byte       { return d.d.Body }
func (d delivery) Ack() error         { return d.d.Ack(false) }

func (d delivery) Nack(requeue bool) error {
	return d.d.Nack(false, requeue)
}
