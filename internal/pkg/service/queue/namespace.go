package queue

import (
	"context"

	"github.com/etcdmq/etcdmq/internal/pkg/service/common/coordstore"
)

const (
	itemNamePrefix     = "item-"
	consumerNamePrefix = "consumer-"
	activeNodeName     = "active"
	itemSlotNodeName   = "item"
)

// Namespace is the fixed tree layout of one queue.
type Namespace struct {
	root      coordstore.Key
	items     coordstore.Prefix
	consumers coordstore.Prefix
	partial   coordstore.Key
}

func NewNamespace(root string) Namespace {
	rootPfx := coordstore.NewPrefix(root)
	return Namespace{
		root:      coordstore.NewKey(root),
		items:     rootPfx.Add("items"),
		consumers: rootPfx.Add("consumers"),
		partial:   rootPfx.Key("partial"),
	}
}

func (n Namespace) Items() coordstore.Prefix {
	return n.items
}

func (n Namespace) Consumers() coordstore.Prefix {
	return n.consumers
}

// registration returns keys of one consumer registration subtree.
func (n Namespace) registration(id string) (reg coordstore.Key, active coordstore.Key, slot coordstore.Key) {
	reg = n.consumers.Key(id)
	subtree := coordstore.Prefix(reg)
	return reg, subtree.Key(activeNodeName), subtree.Key(itemSlotNodeName)
}

// EnsureReady creates the tree nodes if they are absent, it is idempotent.
func (n Namespace) EnsureReady(ctx context.Context, store *coordstore.Store) error {
	for _, key := range []coordstore.Key{
		n.root,
		coordstore.Key(n.items),
		coordstore.Key(n.consumers),
		n.partial,
	} {
		if err := store.CreateIfAbsent(ctx, key, nil); err != nil {
			return err
		}
	}
	return nil
}
