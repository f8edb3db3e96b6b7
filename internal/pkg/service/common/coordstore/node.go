package coordstore

import (
	"context"

	etcd "go.etcd.io/etcd/client/v3"

	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

// Create creates the node, it must not exist.
func (s *Store) Create(ctx context.Context, key Key, data []byte) error {
	return s.createNode(ctx, key, data)
}

// CreateEphemeral creates the node bound to the session lease,
// the store deletes it when the session ends.
func (s *Store) CreateEphemeral(ctx context.Context, key Key, data []byte, lease etcd.LeaseID) error {
	return s.createNode(ctx, key, data, etcd.WithLease(lease))
}

// CreateIfAbsent creates the node, an existing node is not an error.
func (s *Store) CreateIfAbsent(ctx context.Context, key Key, data []byte) error {
	if err := s.createNode(ctx, key, data); err != nil && !errors.Is(err, ErrNodeExists) {
		return err
	}
	return nil
}

func (s *Store) createNode(ctx context.Context, key Key, data []byte, opts ...etcd.OpOption) error {
	val, err := encodeValue(s.clock.Now(), data)
	if err != nil {
		return err
	}
	return s.retryTransient(ctx, "create", func(ctx context.Context) error {
		r, err := s.client.Txn(ctx).
			If(etcd.Compare(etcd.CreateRevision(key.Key()), "=", 0)).
			Then(etcd.OpPut(key.Key(), val, opts...)).
			Commit()
		if err != nil {
			return err
		}
		if !r.Succeeded {
			return errors.Errorf(`cannot create node "%s": %w`, key, ErrNodeExists)
		}
		return nil
	})
}

// Get reads the node data, version and creation time.
func (s *Store) Get(ctx context.Context, key Key) (out NodeValue, err error) {
	err = s.retryTransient(ctx, "get", func(ctx context.Context) error {
		r, err := s.client.Get(ctx, key.Key())
		if err != nil {
			return err
		}
		if r.Count == 0 {
			return errors.Errorf(`cannot get node "%s": %w`, key, ErrNodeAbsent)
		}
		kv := r.Kvs[0]
		created, data, err := decodeValue(kv.Value)
		if err != nil {
			return errors.PrefixErrorf(err, `invalid value of node "%s"`, key)
		}
		out = NodeValue{Data: data, Version: kv.ModRevision, Created: created}
		return nil
	})
	return out, err
}

// Set writes the node data.
// With VersionAny the write is unconditional, otherwise it succeeds
// only if the node version matches.
// The node must exist in both cases.
func (s *Store) Set(ctx context.Context, key Key, data []byte, version int64) error {
	val, err := encodeValue(s.clock.Now(), data)
	if err != nil {
		return err
	}
	return s.retryTransient(ctx, "set", func(ctx context.Context) error {
		r, err := s.client.Txn(ctx).
			If(versionCmp(key, version)).
			Then(etcd.OpPut(key.Key(), val)).
			Else(etcd.OpGet(key.Key(), etcd.WithCountOnly())).
			Commit()
		if err != nil {
			return err
		}
		if !r.Succeeded {
			return conditionError("set", key, r.Responses[0].GetResponseRange().Count)
		}
		return nil
	})
}

// Delete removes the node.
// With VersionAny the delete is unconditional, otherwise it succeeds
// only if the node version matches.
func (s *Store) Delete(ctx context.Context, key Key, version int64) error {
	return s.retryTransient(ctx, "delete", func(ctx context.Context) error {
		r, err := s.client.Txn(ctx).
			If(versionCmp(key, version)).
			Then(etcd.OpDelete(key.Key())).
			Else(etcd.OpGet(key.Key(), etcd.WithCountOnly())).
			Commit()
		if err != nil {
			return err
		}
		if !r.Succeeded {
			return conditionError("delete", key, r.Responses[0].GetResponseRange().Count)
		}
		return nil
	})
}

// DeleteIfExists removes the node, an absent node is not an error.
func (s *Store) DeleteIfExists(ctx context.Context, key Key) error {
	if err := s.Delete(ctx, key, VersionAny); err != nil && !errors.Is(err, ErrNodeAbsent) {
		return err
	}
	return nil
}

// Exists reports whether the node exists.
func (s *Store) Exists(ctx context.Context, key Key) (found bool, err error) {
	err = s.retryTransient(ctx, "exists", func(ctx context.Context) error {
		r, err := s.client.Get(ctx, key.Key(), etcd.WithCountOnly())
		if err != nil {
			return err
		}
		found = r.Count > 0
		return nil
	})
	return found, err
}

func versionCmp(key Key, version int64) etcd.Cmp {
	if version == VersionAny {
		return etcd.Compare(etcd.CreateRevision(key.Key()), "!=", 0)
	}
	return etcd.Compare(etcd.ModRevision(key.Key()), "=", version)
}

func conditionError(op string, key Key, count int64) error {
	if count == 0 {
		return errors.Errorf(`cannot %s node "%s": %w`, op, key, ErrNodeAbsent)
	}
	return errors.Errorf(`cannot %s node "%s": %w`, op, key, ErrVersionConflict)
}
