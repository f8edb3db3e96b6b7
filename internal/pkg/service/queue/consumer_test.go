package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	etcd "go.etcd.io/etcd/client/v3"

	"github.com/etcdmq/etcdmq/internal/pkg/service/common/coordstore"
	"github.com/etcdmq/etcdmq/internal/pkg/service/queue"
	"github.com/etcdmq/etcdmq/internal/pkg/utils/etcdhelper"
)

func TestConsumerRegisterAndClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, client := newTestDeps(t, clockwork.NewRealClock())

	consumer, err := queue.NewConsumer(d, queue.NewConfig())
	require.NoError(t, err)

	id, err := consumer.Register(ctx)
	require.NoError(t, err)
	assert.Equal(t, "consumer-00000000000000000001", id)
	assert.Equal(t, id, consumer.ID())

	etcdhelper.AssertKeys(t, client, []string{
		"queue",
		"queue/consumers",
		"queue/consumers.seq",
		"queue/consumers/consumer-00000000000000000001",
		"queue/consumers/consumer-00000000000000000001/active",
		"queue/consumers/consumer-00000000000000000001/item",
		"queue/items",
		"queue/partial",
	})

	// Double registration is a protocol violation
	_, err = consumer.Register(ctx)
	assert.ErrorIs(t, err, queue.ErrProtocolViolation)

	// Close removes the registration subtree
	require.NoError(t, consumer.Close(ctx))
	etcdhelper.AssertKeys(t, client, []string{
		"queue",
		"queue/consumers",
		"queue/consumers.seq",
		"queue/items",
		"queue/partial",
	})

	// The identity is retired, any further operation fails
	_, err = consumer.Reserve(ctx, false)
	assert.ErrorIs(t, err, queue.ErrConsumerClosed)
	err = consumer.Done(ctx)
	assert.ErrorIs(t, err, queue.ErrConsumerClosed)
	err = consumer.Close(ctx)
	assert.ErrorIs(t, err, queue.ErrConsumerClosed)
	_, err = consumer.Register(ctx)
	assert.ErrorIs(t, err, queue.ErrConsumerClosed)
}

func TestReserveNonBlockingEmptyQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDeps(t, clockwork.NewRealClock())

	consumer, err := queue.NewConsumer(d, queue.NewConfig())
	require.NoError(t, err)
	_, err = consumer.Register(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, consumer.Close(ctx)) }()

	_, err = consumer.Reserve(ctx, false)
	assert.ErrorIs(t, err, queue.ErrNoWork)
}

func TestReserveFIFO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDeps(t, clockwork.NewRealClock())

	producer, err := queue.NewProducer(ctx, d, queue.NewConfig())
	require.NoError(t, err)
	for _, payload := range []string{"first", "second", "third"} {
		_, err := producer.Put(ctx, []byte(payload))
		require.NoError(t, err)
	}

	consumer, err := queue.NewConsumer(d, queue.NewConfig())
	require.NoError(t, err)
	id, err := consumer.Register(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, consumer.Close(ctx)) }()

	// Items come out in the enqueue order
	for _, expected := range []string{"first", "second", "third"} {
		payload, err := consumer.Reserve(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, expected, string(payload))

		// The reservation is recorded in the durable slot until Done
		slot := coordstore.NewPrefix("queue/consumers").Key(id + "/item")
		val, err := d.store.Get(ctx, slot)
		require.NoError(t, err)
		assert.Equal(t, expected, string(val.Data))

		require.NoError(t, consumer.Done(ctx))
		val, err = d.store.Get(ctx, slot)
		require.NoError(t, err)
		assert.True(t, val.Empty())
	}

	_, err = consumer.Reserve(ctx, false)
	assert.ErrorIs(t, err, queue.ErrNoWork)

	// All item nodes are consumed
	names, _, err := d.store.Children(ctx, coordstore.NewPrefix("queue/items"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestReserveBlocking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, client := newTestDeps(t, clockwork.NewRealClock())

	consumer, err := queue.NewConsumer(d, queue.NewConfig())
	require.NoError(t, err)
	_, err = consumer.Register(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, consumer.Close(ctx)) }()

	// The consumer blocks on an empty queue
	type result struct {
		payload []byte
		elapsed time.Duration
		err     error
	}
	resultCh := make(chan result, 1)
	start := time.Now()
	go func() {
		payload, err := consumer.Reserve(ctx, true)
		resultCh <- result{payload: payload, elapsed: time.Since(start), err: err}
	}()

	// Enqueue from a second actor a little later
	time.Sleep(200 * time.Millisecond)
	producer, err := queue.NewProducer(ctx, depsForClient(client, clockwork.NewRealClock()), queue.NewConfig())
	require.NoError(t, err)
	_, err = producer.Put(ctx, []byte("X"))
	require.NoError(t, err)

	select {
	case r := <-resultCh:
		require.NoError(t, r.err)
		assert.Equal(t, "X", string(r.payload))
		// Woken by the watch, not by polling
		assert.Greater(t, r.elapsed, 200*time.Millisecond)
		assert.Less(t, r.elapsed, 5*time.Second)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout when waiting for the blocking reserve")
	}
}

func TestReserveBlockingCancel(t *testing.T) {
	t.Parallel()
	d, _ := newTestDeps(t, clockwork.NewRealClock())

	consumer, err := queue.NewConsumer(d, queue.NewConfig())
	require.NoError(t, err)
	_, err = consumer.Register(context.Background())
	require.NoError(t, err)
	defer func() { require.NoError(t, consumer.Close(context.Background())) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := consumer.Reserve(ctx, true)
		done <- err
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout when waiting for the cancellation")
	}
}

func TestReserveContention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, client := newTestDeps(t, clockwork.NewRealClock())

	producer, err := queue.NewProducer(ctx, d, queue.NewConfig())
	require.NoError(t, err)
	const n = 30
	expected := make(map[string]bool)
	for i := range n {
		payload := []byte{byte('a' + i%26), byte('0' + i/26)}
		expected[string(payload)] = true
		_, err := producer.Put(ctx, payload)
		require.NoError(t, err)
	}

	// Two consumers race for the same candidates, each payload is won exactly once
	results := make(chan string, n)
	wg := &sync.WaitGroup{}
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer, err := queue.NewConsumer(depsForClient(client, clockwork.NewRealClock()), queue.NewConfig())
			if !assert.NoError(t, err) {
				return
			}
			if _, err := consumer.Register(ctx); !assert.NoError(t, err) {
				return
			}
			defer func() { assert.NoError(t, consumer.Close(ctx)) }()
			for {
				payload, err := consumer.Reserve(ctx, false)
				if err != nil {
					assert.ErrorIs(t, err, queue.ErrNoWork)
					return
				}
				results <- string(payload)
				if !assert.NoError(t, consumer.Done(ctx)) {
					return
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	won := make(map[string]bool)
	for payload := range results {
		assert.False(t, won[payload], "payload %q won twice", payload)
		won[payload] = true
	}
	assert.Equal(t, expected, won)
}

func TestReserveSessionExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, client := newTestDeps(t, clockwork.NewRealClock())

	consumer, err := queue.NewConsumer(d, queue.NewConfig())
	require.NoError(t, err)
	id, err := consumer.Register(ctx)
	require.NoError(t, err)

	// A blocking reserve is asleep on an empty queue
	done := make(chan error, 1)
	go func() {
		_, err := consumer.Reserve(ctx, true)
		done <- err
	}()
	time.Sleep(200 * time.Millisecond)

	// Revoke the lease behind the consumer's back, as if the TTL ran out.
	// The revocation changes nothing under the items prefix, so no items
	// watch event can be the wake-up source.
	resp, err := client.Get(ctx, "queue/consumers/"+id+"/active")
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	_, err = client.Revoke(ctx, etcd.LeaseID(resp.Kvs[0].Lease))
	require.NoError(t, err)

	// The waiting reserve is woken by the session end, not by an item event
	select {
	case err := <-done:
		assert.ErrorIs(t, err, queue.ErrSessionExpired)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout when waiting for the expired blocking reserve")
	}

	// The identity is unusable from now on
	err = consumer.Done(ctx)
	assert.ErrorIs(t, err, queue.ErrSessionExpired)
	_, err = consumer.Reserve(ctx, false)
	assert.ErrorIs(t, err, queue.ErrSessionExpired)

	// Close only releases local resources, the store nodes are already gone
	// with the lease or are left to the collector
	_ = consumer.Close(ctx)
}

func TestReserveDropsAbandonedEmptyItem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	d, _ := newTestDeps(t, clock)

	producer, err := queue.NewProducer(ctx, d, queue.NewConfig())
	require.NoError(t, err)
	_, err = producer.Put(ctx, []byte("valid"))
	require.NoError(t, err)

	// Simulate a producer that crashed between create and set
	items := coordstore.NewPrefix("queue/items")
	_, err = d.store.CreateSequential(ctx, items, "item-", nil)
	require.NoError(t, err)

	consumer, err := queue.NewConsumer(d, queue.NewConfig())
	require.NoError(t, err)
	_, err = consumer.Register(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, consumer.Close(ctx)) }()

	// A young empty item is left untouched
	payload, err := consumer.Reserve(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "valid", string(payload))
	require.NoError(t, consumer.Done(ctx))

	names, _, err := d.store.Children(ctx, items)
	require.NoError(t, err)
	assert.Len(t, names, 1)

	// Past the abandonment threshold the empty item is dropped, not returned
	clock.Advance(queue.DefaultAbandonAfter + time.Second)
	_, err = consumer.Reserve(ctx, false)
	assert.ErrorIs(t, err, queue.ErrNoWork)

	names, _, err = d.store.Children(ctx, items)
	require.NoError(t, err)
	assert.Empty(t, names)
}
