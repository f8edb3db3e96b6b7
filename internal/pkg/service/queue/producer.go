package queue

import (
	"context"

	"github.com/etcdmq/etcdmq/internal/pkg/log"
	"github.com/etcdmq/etcdmq/internal/pkg/service/common/coordstore"
)

type dependencies interface {
	Logger() log.Logger
	CoordStore() *coordstore.Store
}

// Producer enqueues payloads.
// It is safe for concurrent use, the enqueue order across concurrent producers
// is the order of the store-assigned sequence suffixes.
type Producer struct {
	logger log.Logger
	store  *coordstore.Store
	ns     Namespace
}

// NewProducer creates a producer and makes sure the queue tree exists.
func NewProducer(ctx context.Context, d dependencies, cfg Config) (*Producer, error) {
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	p := &Producer{
		logger: d.Logger().WithComponent("queue.producer"),
		store:  d.CoordStore(),
		ns:     NewNamespace(cfg.Root),
	}
	if err := p.ns.EnsureReady(ctx, p.store); err != nil {
		return nil, err
	}
	return p, nil
}

// Put enqueues the payload and returns the assigned item name.
//
// The item node is created empty first and the payload is written in a second
// step. A crash in between leaves an empty node, consumers drop such nodes
// after the abandonment threshold.
func (p *Producer) Put(ctx context.Context, payload []byte) (string, error) {
	key, err := p.store.CreateSequential(ctx, p.ns.items, itemNamePrefix, nil)
	if err != nil {
		return "", err
	}
	if err := p.store.Set(ctx, key, payload, coordstore.VersionAny); err != nil {
		return "", err
	}
	name := string(key)[len(p.ns.items.Prefix()):]
	p.logger.Debugf(ctx, `enqueued item "%s"`, name)
	return name, nil
}
