package coordstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	etcd "go.etcd.io/etcd/client/v3"

	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

// sequenceWidth pads sequence numbers, so the lexicographic order of node
// names equals the numeric order.
const sequenceWidth = 20

// sequenceKey is the counter node of the prefix.
// It lives next to the prefix, not under it, so it is invisible to Children.
func (v Prefix) sequenceKey() Key {
	return Key(string(v) + ".seq")
}

// CreateSequential creates a new node under the prefix with a store-assigned,
// strictly increasing sequence suffix and returns its key.
// Concurrent creators are serialized by a compare-and-swap on the counter node.
func (s *Store) CreateSequential(ctx context.Context, dir Prefix, namePrefix string, data []byte) (out Key, err error) {
	val, err := encodeValue(s.clock.Now(), data)
	if err != nil {
		return "", err
	}

	counter := dir.sequenceKey()
	err = s.retryTransient(ctx, "create sequential", func(ctx context.Context) error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			// Read the counter
			r, err := s.client.Get(ctx, counter.Key())
			if err != nil {
				return err
			}
			var next uint64 = 1
			var cmp etcd.Cmp
			if r.Count > 0 {
				kv := r.Kvs[0]
				cur, err := strconv.ParseUint(string(kv.Value), 10, 64)
				if err != nil {
					return errors.PrefixErrorf(err, `invalid sequence counter "%s"`, counter)
				}
				next = cur + 1
				cmp = etcd.Compare(etcd.ModRevision(counter.Key()), "=", kv.ModRevision)
			} else {
				cmp = etcd.Compare(etcd.CreateRevision(counter.Key()), "=", 0)
			}

			// Increment the counter and create the node, both or nothing
			newKey := dir.Key(fmt.Sprintf("%s%0*d", namePrefix, sequenceWidth, next))
			txn, err := s.client.Txn(ctx).
				If(cmp).
				Then(
					etcd.OpPut(counter.Key(), strconv.FormatUint(next, 10)),
					etcd.OpPut(newKey.Key(), val),
				).
				Commit()
			if err != nil {
				return err
			}
			if txn.Succeeded {
				out = newKey
				return nil
			}
			// Another creator won the counter, re-read and try again
		}
	})
	return out, err
}

// Children lists names of direct child nodes, sorted in the sequence order.
// The returned revision can be passed to WaitForChildrenChange.
func (s *Store) Children(ctx context.Context, dir Prefix) (names []string, revision int64, err error) {
	err = s.retryTransient(ctx, "children", func(ctx context.Context) error {
		r, err := s.client.Get(ctx, dir.Prefix(), etcd.WithPrefix(), etcd.WithKeysOnly(), etcd.WithSort(etcd.SortByKey, etcd.SortAscend))
		if err != nil {
			return err
		}
		names = names[:0]
		for _, kv := range r.Kvs {
			name := strings.TrimPrefix(string(kv.Key), dir.Prefix())
			// A nested key belongs to the child owning the first path segment
			if i := strings.IndexByte(name, '/'); i >= 0 {
				name = name[:i]
			}
			if n := len(names); n == 0 || names[n-1] != name {
				names = append(names, name)
			}
		}
		revision = r.Header.Revision
		return nil
	})
	return names, revision, err
}

// WaitForChildrenChange blocks until any change of the child set after the
// given revision, or until the context ends.
// A return without an error means only "something may have changed",
// the caller must list the children again.
func (s *Store) WaitForChildrenChange(ctx context.Context, dir Prefix, revision int64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := s.client.Watch(ctx, dir.Prefix(), etcd.WithPrefix(), etcd.WithRev(revision+1))
	for resp := range ch {
		if err := resp.Err(); err != nil {
			return err
		}
		if len(resp.Events) > 0 {
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Errorf(`watch on "%s" closed unexpectedly`, dir.Prefix())
}

// DeleteAll removes all nodes under the prefix, it returns the number of deleted nodes.
func (s *Store) DeleteAll(ctx context.Context, dir Prefix) (count int64, err error) {
	err = s.retryTransient(ctx, "delete all", func(ctx context.Context) error {
		r, err := s.client.Delete(ctx, dir.Prefix(), etcd.WithPrefix())
		if err != nil {
			return err
		}
		count = r.Deleted
		return nil
	})
	return count, err
}
