package queue_test

import (
	"testing"

	"github.com/jonboulle/clockwork"
	etcd "go.etcd.io/etcd/client/v3"

	"github.com/etcdmq/etcdmq/internal/pkg/log"
	"github.com/etcdmq/etcdmq/internal/pkg/service/common/coordstore"
	"github.com/etcdmq/etcdmq/internal/pkg/utils/etcdhelper"
)

type testDeps struct {
	logger log.DebugLogger
	store  *coordstore.Store
}

func (d *testDeps) Logger() log.Logger {
	return d.logger
}

func (d *testDeps) CoordStore() *coordstore.Store {
	return d.store
}

func newTestDeps(t *testing.T, clock clockwork.Clock) (*testDeps, *etcd.Client) {
	t.Helper()
	client := etcdhelper.ClientForTest(t, etcdhelper.TmpNamespace(t))
	logger := log.NewDebugLogger()
	return &testDeps{logger: logger, store: coordstore.New(client, logger, clock)}, client
}

// depsForClient creates dependencies over an existing client, so two actors
// can share one namespace in a test.
func depsForClient(client *etcd.Client, clock clockwork.Clock) *testDeps {
	logger := log.NewDebugLogger()
	return &testDeps{logger: logger, store: coordstore.New(client, logger, clock)}
}
