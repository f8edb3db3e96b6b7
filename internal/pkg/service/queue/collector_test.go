package queue_test

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etcdmq/etcdmq/internal/pkg/service/common/coordstore"
	"github.com/etcdmq/etcdmq/internal/pkg/service/queue"
	"github.com/etcdmq/etcdmq/internal/pkg/utils/etcdhelper"
)

// crashedRegistration builds the store state left behind by a consumer whose
// session died while holding a reservation: a registration without the
// ephemeral marker, with the payload still in the durable slot.
func crashedRegistration(t *testing.T, ctx context.Context, store *coordstore.Store, payload []byte) string {
	t.Helper()
	reg, err := store.CreateSequential(ctx, coordstore.NewPrefix("queue/consumers"), "consumer-", nil)
	require.NoError(t, err)
	slot := coordstore.Prefix(reg).Key("item")
	require.NoError(t, store.Create(ctx, slot, nil))
	if payload != nil {
		require.NoError(t, store.Set(ctx, slot, payload, coordstore.VersionAny))
	}
	return string(reg)[len("queue/consumers/"):]
}

func TestCollectRequeuesAbandonedPayload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, client := newTestDeps(t, clockwork.NewRealClock())

	collector, err := queue.NewCollector(ctx, d, queue.NewConfig())
	require.NoError(t, err)

	id := crashedRegistration(t, ctx, d.store, []byte("abandoned"))

	reclaimed, err := collector.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	// The registration is gone and the payload is back in the items prefix
	etcdhelper.AssertKeys(t, client, []string{
		"queue",
		"queue/consumers",
		"queue/consumers.seq",
		"queue/items",
		"queue/items.seq",
		"queue/items/item-00000000000000000001",
		"queue/partial",
	})

	// A fresh consumer can reserve the requeued payload
	consumer, err := queue.NewConsumer(d, queue.NewConfig())
	require.NoError(t, err)
	newID, err := consumer.Register(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)
	defer func() { require.NoError(t, consumer.Close(ctx)) }()

	payload, err := consumer.Reserve(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "abandoned", string(payload))
	require.NoError(t, consumer.Done(ctx))
}

func TestCollectRemovesEmptyDeadRegistration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, client := newTestDeps(t, clockwork.NewRealClock())

	collector, err := queue.NewCollector(ctx, d, queue.NewConfig())
	require.NoError(t, err)

	crashedRegistration(t, ctx, d.store, nil)

	// Nothing to requeue, the registration is just deleted
	reclaimed, err := collector.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	etcdhelper.AssertKeys(t, client, []string{
		"queue",
		"queue/consumers",
		"queue/consumers.seq",
		"queue/items",
		"queue/partial",
	})
}

func TestCollectLeavesLiveConsumerAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, client := newTestDeps(t, clockwork.NewRealClock())

	producer, err := queue.NewProducer(ctx, d, queue.NewConfig())
	require.NoError(t, err)
	_, err = producer.Put(ctx, []byte("in-flight"))
	require.NoError(t, err)

	consumer, err := queue.NewConsumer(depsForClient(client, clockwork.NewRealClock()), queue.NewConfig())
	require.NoError(t, err)
	_, err = consumer.Register(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, consumer.Close(ctx)) }()

	payload, err := consumer.Reserve(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "in-flight", string(payload))

	// The consumer holds a reservation, but its marker is present: no reclaim
	collector, err := queue.NewCollector(ctx, d, queue.NewConfig())
	require.NoError(t, err)
	reclaimed, err := collector.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reclaimed)

	require.NoError(t, consumer.Done(ctx))
}

func TestCollectEmptyQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDeps(t, clockwork.NewRealClock())

	collector, err := queue.NewCollector(ctx, d, queue.NewConfig())
	require.NoError(t, err)

	reclaimed, err := collector.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reclaimed)
}

func TestCollectConcurrentPasses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, client := newTestDeps(t, clockwork.NewRealClock())

	collector1, err := queue.NewCollector(ctx, d, queue.NewConfig())
	require.NoError(t, err)
	collector2, err := queue.NewCollector(ctx, depsForClient(client, clockwork.NewRealClock()), queue.NewConfig())
	require.NoError(t, err)

	crashedRegistration(t, ctx, d.store, []byte("once-only"))

	// Two concurrent passes must requeue the payload at most once
	type result struct {
		reclaimed int
		err       error
	}
	results := make(chan result, 2)
	for _, collector := range []*queue.Collector{collector1, collector2} {
		go func() {
			reclaimed, err := collector.Collect(ctx)
			results <- result{reclaimed: reclaimed, err: err}
		}()
	}
	for range 2 {
		r := <-results
		require.NoError(t, r.err)
	}

	// Exactly one copy of the payload exists
	names, _, err := d.store.Children(ctx, coordstore.NewPrefix("queue/items"))
	require.NoError(t, err)
	require.Len(t, names, 1)
	val, err := d.store.Get(ctx, coordstore.NewPrefix("queue/items").Key(names[0]))
	require.NoError(t, err)
	assert.Equal(t, "once-only", string(val.Data))
}
