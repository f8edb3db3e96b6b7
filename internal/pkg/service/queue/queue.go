// Package queue implements a distributed, crash-tolerant FIFO queue of opaque
// payloads on top of the coordination store.
//
// Tree layout, relative to the configured root:
//
//	<root>/items/item-<seq>          - enqueued payloads, the sequence order is the enqueue order
//	<root>/consumers/consumer-<seq>  - one registration per consumer instance
//	<root>/consumers/<id>/active     - ephemeral liveness marker, bound to the consumer session
//	<root>/consumers/<id>/item       - durable slot with the payload reserved by the consumer
//	<root>/partial                   - reserved, kept for compatibility with other clients of the tree
//
// A payload is reachable from exactly one place at a time: an item node, or one
// consumer's slot. The reservation step moves it between the two with a
// version-conditioned delete, so two consumers can never both win the same item.
// A consumer crash leaves the payload in its durable slot, the Collector returns
// it to the items prefix.
package queue

import (
	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

var (
	// ErrNoWork is returned by a non-blocking Reserve when no item could be won.
	ErrNoWork = errors.New("no work available")
	// ErrConsumerClosed is returned by any operation on a closed consumer,
	// consumer identities are single-use.
	ErrConsumerClosed = errors.New("consumer is closed")
	// ErrSessionExpired is returned when the consumer session is gone,
	// the consumer must be abandoned and a new one registered.
	ErrSessionExpired = errors.New("consumer session expired")
	// ErrProtocolViolation reports a broken queue invariant, it is never repaired silently.
	ErrProtocolViolation = errors.New("queue protocol violation")
)
