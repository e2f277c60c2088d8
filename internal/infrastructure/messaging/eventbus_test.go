package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventAt = time.Date(2024, 1, 8, 7, 0, 0, 0, time.UTC)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: logger.Discard()})
	defer bus.Close()

	var got []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventCheckedOut, func(e shared.Event) error {
		got = append(got, e)
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventCheckedIn, func(shared.Event) error {
		t.Fatal("unexpected delivery")
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewCheckedOutEvent("m-1", "r-1", "2024-01-08", 1.5, eventAt)))

	require.Len(t, got, 1)
	assert.Equal(t, "m-1", got[0].AggregateID())
}

func TestInMemoryEventBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: logger.Discard()})
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventCheckedIn, func(shared.Event) error {
		calls++
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventCheckedIn, func(shared.Event) error {
		calls++
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewCheckedInEvent("m-1", "r-1", "2024-01-08", eventAt)))
	assert.Equal(t, 2, calls)
}

func TestInMemoryEventBus_AsyncDeliveryCompletesBeforeClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Discard()})

	var delivered int32
	require.NoError(t, bus.Subscribe(shared.EventCheckedOut, func(shared.Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewCheckedOutEvent("m-1", "r-1", "2024-01-08", 1, eventAt)))
	}

	// Give the pool a chance before closing.
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&delivered) == 10 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Close())
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: logger.Discard()})
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewCheckedInEvent("m-1", "r-1", "2024-01-08", eventAt)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventCheckedIn, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

// fakeRedis is an in-process Pub/Sub shared by several buses.
type fakeRedis struct {
	mu        sync.Mutex
	published []string
	subs      []chan RedisMessage
	failPub   bool
}

func (r *fakeRedis) Publish(_ context.Context, channel string, message interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPub {
		return errors.New("connection refused")
	}
	payload := message.(string)
	r.published = append(r.published, payload)
	for _, ch := range r.subs {
		ch <- RedisMessage{Channel: channel, Payload: payload}
	}
	return nil
}

func (r *fakeRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan RedisMessage, 16)
	r.subs = append(r.subs, ch)
	return ch, nil
}

func (r *fakeRedis) Close() error { return nil }

func TestRedisEventBus_DeliversAcrossInstances(t *testing.T) {
	redis := &fakeRedis{}

	api, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "api", Logger: logger.Discard()})
	require.NoError(t, err)
	defer api.Close()

	worker, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "worker", Listen: true, Logger: logger.Discard()})
	require.NoError(t, err)
	defer worker.Close()

	received := make(chan shared.Event, 1)
	require.NoError(t, worker.Subscribe(shared.EventCheckedOut, func(e shared.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, api.Publish(shared.NewCheckedOutEvent("m-7", "r-1", "2024-01-08", 2, eventAt)))

	select {
	case e := <-received:
		assert.Equal(t, shared.EventCheckedOut, e.EventType())
		assert.Equal(t, "m-7", e.AggregateID())
		assert.True(t, eventAt.Equal(e.OccurredAt()))
		assert.Equal(t, "2024-01-08", e.Payload()["date"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered to worker")
	}

	var envelope eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(redis.published[0]), &envelope))
	assert.Equal(t, "api", envelope.InstanceID)
}

func TestRedisEventBus_SkipsOwnMessages(t *testing.T) {
	redis := &fakeRedis{}

	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "solo", Listen: true, Logger: logger.Discard()})
	require.NoError(t, err)

	var calls int32
	require.NoError(t, bus.Subscribe(shared.EventCheckedIn, func(shared.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewCheckedInEvent("m-1", "r-1", "2024-01-08", eventAt)))
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRedisEventBus_PublishFailureStillDeliversLocally(t *testing.T) {
	redis := &fakeRedis{failPub: true}

	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, Logger: logger.Discard()})
	require.NoError(t, err)
	defer bus.Close()

	delivered := false
	require.NoError(t, bus.Subscribe(shared.EventCheckedIn, func(shared.Event) error {
		delivered = true
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewCheckedInEvent("m-1", "r-1", "2024-01-08", eventAt)))
	assert.True(t, delivered)
}

func TestNewRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}
