// Package eventbus provides the topic-based publish/subscribe abstraction the
// services use to propagate content lifecycle changes.
//
// Delivery is at-least-once and unordered: a handler may see the same
// envelope more than once and may see envelopes for one item in any order.
// Handlers must therefore be idempotent. A delivery is acknowledged only when
// the handler returns nil; any other result leaves it for redelivery, except
// for errors wrapped with Discard, which mark a payload that can never be
// processed.
//
// Exchanges and queues are non-durable. A broker restart loses messages that
// were in flight; derived stores have to be resynchronized from the system of
// record in that case.
//
// Implementations live in subpackages: rabbitmq (AMQP 0-9-1) and memory (an
// in-process topic exchange used for tests and single-process development).
package eventbus
