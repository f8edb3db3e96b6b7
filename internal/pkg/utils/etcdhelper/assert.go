package etcdhelper

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.etcd.io/etcd/api/v3/etcdserverpb"
	etcd "go.etcd.io/etcd/client/v3"

	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

type tHelper interface {
	Helper()
}

// DumpAllKeys returns a sorted list of all keys in the database.
func DumpAllKeys(ctx context.Context, client etcd.KV) ([]string, error) {
	resp, err := client.Get(ctx, "", etcd.WithFromKey(), etcd.WithKeysOnly())
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out = append(out, string(kv.Key))
	}
	sort.Strings(out)
	return out, nil
}

// AssertKeys dumps all keys from an etcd database and compares them with the expected keys.
func AssertKeys(t assert.TestingT, client etcd.KV, expectedKeys []string) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}

	actualKeys, err := DumpAllKeys(context.Background(), client)
	if err != nil {
		assert.Fail(t, err.Error())
		return false
	}

	expected := make([]string, len(expectedKeys))
	copy(expected, expectedKeys)
	sort.Strings(expected)
	return assert.Equal(t, expected, actualKeys)
}

// ExpectModificationInPrefix waits until the operation makes some change in etcd or a timeout occurs.
func ExpectModificationInPrefix(t *testing.T, client *etcd.Client, pfx string, operation func()) *etcdserverpb.ResponseHeader {
	t.Helper()

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(errors.New("expectation cancelled"))

	ch := client.Watch(ctx, pfx, etcd.WithPrefix(), etcd.WithCreatedNotify())

	resp := <-ch
	assert.True(t, resp.Created)

	operation()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled when waiting for an etcd modification")
	case <-time.After(5 * time.Second):
		t.Fatal("timeout when waiting for an etcd modification")
	case resp = <-ch:
		if resp.Err() != nil {
			t.Fatal(resp.Err())
		}
		return &resp.Header
	}

	return nil
}
