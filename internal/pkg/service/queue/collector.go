package queue

import (
	"context"
	"strings"

	"github.com/etcdmq/etcdmq/internal/pkg/log"
	"github.com/etcdmq/etcdmq/internal/pkg/service/common/coordstore"
	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

// Collector reclaims registrations of consumers whose session died.
//
// The liveness marker is ephemeral, so its absence means the session is gone.
// A payload left in the dead consumer's durable slot is returned to the items
// prefix for reprocessing, then the registration subtree is removed.
//
// Collect may run concurrently with itself and with live consumers closing:
// the slot clear is conditioned on the slot version, so a payload is requeued
// at most once, and deletions of already absent nodes are treated as success.
type Collector struct {
	logger log.Logger
	store  *coordstore.Store
	ns     Namespace
}

func NewCollector(ctx context.Context, d dependencies, cfg Config) (*Collector, error) {
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	c := &Collector{
		logger: d.Logger().WithComponent("queue.collector"),
		store:  d.CoordStore(),
		ns:     NewNamespace(cfg.Root),
	}
	if err := c.ns.EnsureReady(ctx, c.store); err != nil {
		return nil, err
	}
	return c, nil
}

// Collect scans all registrations once and returns the number of reclaimed ones.
// Failures on single registrations are aggregated, the scan continues.
func (c *Collector) Collect(ctx context.Context) (reclaimed int, err error) {
	names, _, err := c.store.Children(ctx, c.ns.consumers)
	if err != nil {
		return 0, err
	}

	errs := errors.NewMultiError()
	for _, name := range names {
		if !strings.HasPrefix(name, consumerNamePrefix) {
			continue
		}
		ok, err := c.collectOne(ctx, name)
		errs.AppendWithPrefixf(err, `cannot collect registration "%s"`, name)
		if ok {
			reclaimed++
		}
	}
	return reclaimed, errs.ErrorOrNil()
}

func (c *Collector) collectOne(ctx context.Context, id string) (reclaimed bool, err error) {
	reg, active, slot := c.ns.registration(id)

	// A present marker means a live session, leave the registration alone
	found, err := c.store.Exists(ctx, active)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	// The session is dead. Requeue the payload left in the slot, if any.
	val, err := c.store.Get(ctx, slot)
	if err != nil && !errors.Is(err, coordstore.ErrNodeAbsent) {
		return false, err
	}
	if err == nil && !val.Empty() {
		requeued, err := c.requeue(ctx, slot, val)
		if err != nil {
			return false, err
		}
		if !requeued {
			// Another collector pass won the slot, it owns the cleanup too
			return false, nil
		}
	}

	// Delete the registration subtree, absent nodes were removed by a closing
	// consumer or by a concurrent pass
	if _, err := c.store.DeleteAll(ctx, coordstore.Prefix(reg)); err != nil {
		return false, err
	}
	if err := c.store.DeleteIfExists(ctx, reg); err != nil {
		return false, err
	}

	c.logger.Infof(ctx, `reclaimed registration "%s"`, id)
	return true, nil
}

// requeue moves the abandoned payload from the slot into a fresh item node,
// using the same create-then-set sequence as a producer. The slot is cleared
// conditioned on the version read: on a conflict another pass already requeued
// the payload, so the fresh item is rolled back to avoid a duplicate.
func (c *Collector) requeue(ctx context.Context, slot coordstore.Key, val coordstore.NodeValue) (requeued bool, err error) {
	item, err := c.store.CreateSequential(ctx, c.ns.items, itemNamePrefix, nil)
	if err != nil {
		return false, err
	}
	if err := c.store.Set(ctx, item, val.Data, coordstore.VersionAny); err != nil {
		return false, err
	}

	err = c.store.Set(ctx, slot, nil, val.Version)
	if errors.Is(err, coordstore.ErrVersionConflict) || errors.Is(err, coordstore.ErrNodeAbsent) {
		if err := c.store.DeleteIfExists(ctx, item); err != nil {
			return false, err
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}

	c.logger.Infof(ctx, `requeued abandoned payload from "%s" as "%s"`, slot, item)
	return true, nil
}
