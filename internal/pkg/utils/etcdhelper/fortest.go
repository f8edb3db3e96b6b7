// Package etcdhelper provides an etcd client and assert helpers for tests.
package etcdhelper

import (
	"context"
	"fmt"
	"os"
	"time"

	etcd "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"

	"github.com/etcdmq/etcdmq/internal/pkg/idgenerator"
)

type testOrBenchmark interface {
	Cleanup(f func())
	Skipf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// TmpNamespace generates a unique etcd namespace for a test.
func TmpNamespace(t testOrBenchmark) string {
	return fmt.Sprintf("unit-%s/", idgenerator.EtcdNamespaceForTest())
}

// ClientForTest creates an etcd client isolated in the namespace prefix.
// The namespace is deleted when the test ends.
// The target cluster is configured by the UNIT_ETCD_ENDPOINT env,
// the test is skipped if UNIT_ETCD_ENABLED=false.
func ClientForTest(t testOrBenchmark, prefix string) *etcd.Client {
	ctx := context.Background()

	if os.Getenv("UNIT_ETCD_ENABLED") == "false" {
		t.Skipf("etcd test is disabled by UNIT_ETCD_ENABLED=false")
	}

	endpoint := os.Getenv("UNIT_ETCD_ENDPOINT")
	if endpoint == "" {
		t.Fatalf(`UNIT_ETCD_ENDPOINT is not set`)
	}

	// Create etcd client
	etcdClient, err := etcd.New(etcd.Config{
		Context:              ctx,
		Endpoints:            []string{endpoint},
		DialTimeout:          2 * time.Second,
		DialKeepAliveTimeout: 2 * time.Second,
		DialKeepAliveTime:    10 * time.Second,
		Username:             os.Getenv("UNIT_ETCD_USERNAME"), // optional
		Password:             os.Getenv("UNIT_ETCD_PASSWORD"), // optional
		DialOptions: []grpc.DialOption{
			grpc.WithConnectParams(grpc.ConnectParams{
				Backoff: backoff.Config{
					BaseDelay:  100 * time.Millisecond,
					Multiplier: 1.5,
					Jitter:     0.2,
					MaxDelay:   15 * time.Second,
				},
			}),
		},
	})
	if err != nil {
		t.Fatalf("cannot create etcd client: %s", err)
	}

	// Create namespace
	originalKV := etcdClient.KV // not namespaced client, for the cleanup
	etcdClient.KV = namespace.NewKV(etcdClient.KV, prefix)
	etcdClient.Lease = namespace.NewLease(etcdClient.Lease, prefix)
	etcdClient.Watcher = namespace.NewWatcher(etcdClient.Watcher, prefix)

	// Cleanup namespace after the test
	t.Cleanup(func() {
		if _, err := originalKV.Delete(ctx, prefix, etcd.WithPrefix()); err != nil {
			t.Fatalf(`cannot clear etcd namespace "%s" after test: %s`, prefix, err)
		}
		_ = etcdClient.Close()
	})

	return etcdClient
}
