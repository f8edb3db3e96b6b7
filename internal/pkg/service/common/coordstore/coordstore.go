// Package coordstore adapts etcd to the node model required by the queue protocol:
// a hierarchical namespace of nodes with creation time, per-node version,
// sequential and lease-bound (ephemeral) creation, and one-shot children watches.
//
// See Key and Prefix types for path construction and the Store type for operations.
//
// Goals:
//   - Distinguish between operations over one node (Key type) and a node set (Prefix type).
//   - Make every conditional mutation an etcd transaction, so the optimistic
//     concurrency contract is visible at the call site.
//   - Retry transient connection failures uniformly at this boundary,
//     protocol errors (ErrNodeExists, ErrNodeAbsent, ErrVersionConflict) are never retried.
package coordstore

import (
	"strings"

	"github.com/jonboulle/clockwork"
	etcd "go.etcd.io/etcd/client/v3"

	"github.com/etcdmq/etcdmq/internal/pkg/log"
)

// VersionAny disables the version check of a conditional operation.
const VersionAny = int64(-1)

// Key represents one node path.
type Key string

// Prefix represents a path of a node set, not a one node.
type Prefix string

func NewKey(v string) Key {
	return Key(strings.Trim(v, "/"))
}

func NewPrefix(v string) Prefix {
	return Prefix(strings.Trim(v, "/"))
}

func (v Key) Key() string {
	return string(v)
}

func (v Prefix) Prefix() string {
	return string(v) + "/"
}

func (v Prefix) Add(str string) Prefix {
	return Prefix(v.Prefix() + str)
}

func (v Prefix) Key(key string) Key {
	return Key(v.Prefix() + key)
}

// Store provides the node operations on top of an etcd client.
type Store struct {
	client *etcd.Client
	logger log.Logger
	clock  clockwork.Clock
	retry  RetryConfig
}

type Option func(s *Store)

// WithRetryConfig overrides the default transient-error retry policy.
func WithRetryConfig(v RetryConfig) Option {
	return func(s *Store) {
		s.retry = v
	}
}

func New(client *etcd.Client, logger log.Logger, clock clockwork.Clock, opts ...Option) *Store {
	s := &Store{
		client: client,
		logger: logger.WithComponent("coordstore"),
		clock:  clock,
		retry:  DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Client() *etcd.Client {
	return s.client
}

func (s *Store) Clock() clockwork.Clock {
	return s.clock
}
