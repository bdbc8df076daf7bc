package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

type sinkFunc func(context.Context, RideEvent) error

func (f sinkFunc) Publish(ctx context.Context, ev RideEvent) error { return f(ctx, ev) }

func TestKafkaSinkKeysByRide(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w, timeout: time.Second}
	ev := RideEvent{RideID: 42, Op: OpUpdate, Type: "seat_confirmed", Status: "confirmed", ActorID: 1, At: testNow}

	require.NoError(t, sink.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))

	var got RideEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ev, got)
}

func TestAMQPSinkRoutesByType(t *testing.T) {
	pub := &fakePublisher{}
	sink := &AMQPSink{ch: pub, exchange: "ride.events", logger: discardLogger()}

	require.NoError(t, sink.Publish(context.Background(), RideEvent{RideID: 3, Type: "cancelled"}))
	assert.Equal(t, "ride.events", pub.exchange)
	assert.Equal(t, "ride.cancelled", pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.NoError(t, sink.Close())
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	calls := 0
	ok := sinkFunc(func(context.Context, RideEvent) error { calls++; return nil })
	boom := errors.New("broker down")
	bad := sinkFunc(func(context.Context, RideEvent) error { calls++; return boom })

	err := MultiSink{bad, nil, ok}.Publish(context.Background(), RideEvent{RideID: 1})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "a failing sink does not stop the others")
}

func TestLocalFeedCoalescesAndUnsubscribes(t *testing.T) {
	feed := NewLocalFeed()
	ctx, cancel := context.WithCancel(context.Background())

	ch, stop, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	_, stop2, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, feed.Subscribers())

	for i := 0; i < 5; i++ {
		require.NoError(t, feed.Publish(context.Background(), RideEvent{RideID: uint(i)}))
	}
	assert.Len(t, ch, 1)

	cancel()
	require.Eventually(t, func() bool { return feed.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	stop()
	stop2()
	stop2()
	assert.Zero(t, feed.Subscribers())
}
