package queue

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/etcdmq/etcdmq/internal/pkg/log"
	"github.com/etcdmq/etcdmq/internal/pkg/service/common/coordstore"
	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

// Consumer reserves and processes payloads.
//
// Lifecycle: NewConsumer -> Register -> (Reserve -> Done)* -> Close.
// The identity assigned by Register is single-use: after Close, or after the
// session expires, every operation fails and a new consumer must be created.
//
// A Consumer instance must not be used from multiple goroutines: it owns one
// item slot, so concurrent Reserve calls would overwrite each other.
type Consumer struct {
	logger log.Logger
	store  *coordstore.Store
	ns     Namespace
	cfg    Config
	wg     *sync.WaitGroup

	session *coordstore.Session
	id      string
	reg     coordstore.Key
	active  coordstore.Key
	slot    coordstore.Key

	registered atomic.Bool
	closed     atomic.Bool
	expired    atomic.Bool
}

func NewConsumer(d dependencies, cfg Config) (*Consumer, error) {
	if err := cfg.Validate(context.Background()); err != nil {
		return nil, err
	}
	return &Consumer{
		logger: d.Logger().WithComponent("queue.consumer"),
		store:  d.CoordStore(),
		ns:     NewNamespace(cfg.Root),
		cfg:    cfg,
		wg:     &sync.WaitGroup{},
	}, nil
}

// Register creates the consumer identity: a sequential registration node,
// an ephemeral liveness marker bound to a new session, and a durable, empty
// item slot. A partial registration is a fatal error, the consumer must not
// be used afterwards.
func (c *Consumer) Register(ctx context.Context) (id string, err error) {
	if c.closed.Load() {
		return "", ErrConsumerClosed
	}
	if c.registered.Load() {
		return "", errors.Errorf("%w: consumer is already registered as \"%s\"", ErrProtocolViolation, c.id)
	}

	if err := c.ns.EnsureReady(ctx, c.store); err != nil {
		return "", err
	}

	// The session owns the liveness marker
	c.session, err = c.store.NewSession(ctx, c.wg, c.cfg.SessionTTLSeconds)
	if err != nil {
		return "", errors.PrefixError(err, "cannot register consumer: cannot create session")
	}
	c.session.OnStateChange(func(state coordstore.SessionState) {
		if state == coordstore.SessionExpired {
			c.expired.Store(true)
		}
	})

	// Create the registration node, the sequence suffix is the consumer identity
	c.reg, err = c.store.CreateSequential(ctx, c.ns.consumers, consumerNamePrefix, nil)
	if err != nil {
		_ = c.session.Close()
		return "", errors.PrefixError(err, "cannot register consumer")
	}
	c.id = string(c.reg)[strings.LastIndexByte(string(c.reg), '/')+1:]
	_, c.active, c.slot = c.ns.registration(c.id)

	// Create the liveness marker and the item slot
	if err := c.store.CreateEphemeral(ctx, c.active, nil, c.session.Lease()); err != nil {
		return "", c.registrationFailed(ctx, err)
	}
	if err := c.store.Create(ctx, c.slot, nil); err != nil {
		return "", c.registrationFailed(ctx, err)
	}

	c.registered.Store(true)
	c.logger.Infof(ctx, `registered consumer "%s"`, c.id)
	return c.id, nil
}

// registrationFailed reverts a partial registration on a best-effort basis.
func (c *Consumer) registrationFailed(ctx context.Context, err error) error {
	c.closed.Store(true)
	_ = c.store.DeleteIfExists(ctx, c.slot)
	_ = c.store.DeleteIfExists(ctx, c.active)
	_ = c.store.DeleteIfExists(ctx, c.reg)
	_ = c.session.Close()
	return errors.PrefixError(err, "cannot register consumer")
}

// ID returns the identity assigned by Register.
func (c *Consumer) ID() string {
	return c.id
}

// Reserve atomically moves the oldest winnable item into this consumer's slot
// and returns its payload, which the consumer now holds exclusively.
//
// In non-blocking mode it returns ErrNoWork when no item could be won in one
// pass. In blocking mode it waits on a watch of the items prefix and rescans
// on every change, until an item is won or the context ends.
func (c *Consumer) Reserve(ctx context.Context, blocking bool) ([]byte, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}

	for {
		names, revision, err := c.store.Children(ctx, c.ns.items)
		if err != nil {
			return nil, err
		}

		// Try candidates in the sequence order, a lost race on one candidate
		// does not block the rest of the pass
		for _, name := range names {
			if !strings.HasPrefix(name, itemNamePrefix) {
				continue
			}
			payload, won, err := c.move(ctx, c.ns.items.Key(name))
			if err != nil {
				return nil, err
			}
			if won {
				return payload, nil
			}
			if err := c.usable(); err != nil {
				return nil, err
			}
		}

		if !blocking {
			return nil, ErrNoWork
		}
		if err := c.waitForItems(ctx, revision); err != nil {
			return nil, err
		}
	}
}

// waitForItems blocks until any change of the items prefix after the given
// revision. Spurious wake-ups only cause an extra scan.
//
// The wait also ends when the session expires: the items watch is bound to the
// shared client, not to the session lease, so without this a consumer whose
// session died would sleep on an empty queue indefinitely.
func (c *Consumer) waitForItems(ctx context.Context, revision int64) error {
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-c.session.Done():
			watchCancel()
		case <-stop:
		}
	}()

	err := c.store.WaitForChildrenChange(watchCtx, c.ns.items, revision)
	if err := c.usable(); err != nil {
		return err
	}
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// Watch failure, e.g. a compacted revision: rescan from the top
		c.logger.Warnf(ctx, `items watch interrupted, rescanning: %s`, err)
	}
	return nil
}

// move attempts to win the source item.
//
// The payload is first written into the consumer's own slot, then the source
// node is deleted conditioned on the version read. Only a successful delete
// means the item is won: on a lost delete race the slot write is rolled back,
// so the consumer never believes it holds a payload another consumer won.
func (c *Consumer) move(ctx context.Context, src coordstore.Key) (payload []byte, won bool, err error) {
	val, err := c.store.Get(ctx, src)
	if errors.Is(err, coordstore.ErrNodeAbsent) {
		// Another consumer reserved the item between the listing and the read
		if err := c.store.Set(ctx, c.slot, nil, coordstore.VersionAny); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if !val.Empty() {
		if err := c.store.Set(ctx, c.slot, val.Data, coordstore.VersionAny); err != nil {
			return nil, false, err
		}
		err := c.store.Delete(ctx, src, val.Version)
		if err == nil {
			return val.Data, true, nil
		}
		if errors.Is(err, coordstore.ErrNodeAbsent) || errors.Is(err, coordstore.ErrVersionConflict) {
			// Lost the race, the item belongs to someone else: roll back the slot
			if err := c.store.Set(ctx, c.slot, nil, coordstore.VersionAny); err != nil {
				return nil, false, err
			}
			return nil, false, nil
		}
		return nil, false, err
	}

	if age := c.store.Clock().Since(val.Created); age >= c.cfg.AbandonAfter {
		// A producer crashed between create and set, drop the empty item.
		// An absent node means someone else dropped it first.
		c.logger.Infof(ctx, `dropping abandoned empty item "%s", age %s`, src, age)
		if err := c.store.DeleteIfExists(ctx, src); err != nil {
			return nil, false, err
		}
	}
	return nil, false, nil
}

// Done clears the item slot, the consumer is ready to reserve again.
func (c *Consumer) Done(ctx context.Context) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.store.Set(ctx, c.slot, nil, coordstore.VersionAny)
}

// Close deletes the item slot, the liveness marker and the registration node,
// and ends the session. The identity is retired permanently.
func (c *Consumer) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return ErrConsumerClosed
	}
	if !c.registered.Load() {
		return nil
	}

	// Deletions of already absent nodes are a success:
	// the Collector may be cleaning up this registration concurrently.
	errs := errors.NewMultiError()
	errs.AppendWithPrefixf(c.store.DeleteIfExists(ctx, c.slot), `cannot delete item slot of consumer "%s"`, c.id)
	errs.AppendWithPrefixf(c.store.DeleteIfExists(ctx, c.active), `cannot delete active marker of consumer "%s"`, c.id)
	errs.AppendWithPrefixf(c.store.DeleteIfExists(ctx, c.reg), `cannot delete registration of consumer "%s"`, c.id)
	errs.AppendWithPrefixf(c.session.Close(), `cannot close session of consumer "%s"`, c.id)
	if errs.Len() == 0 {
		c.logger.Infof(ctx, `closed consumer "%s"`, c.id)
	}
	return errs.ErrorOrNil()
}

func (c *Consumer) usable() error {
	switch {
	case c.closed.Load():
		return ErrConsumerClosed
	case !c.registered.Load():
		return errors.Errorf("%w: consumer is not registered", ErrProtocolViolation)
	case c.expired.Load() || c.session.IsExpired():
		return ErrSessionExpired
	default:
		return nil
	}
}
