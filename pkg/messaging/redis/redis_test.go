package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaro/venue-api/pkg/messaging"
)

func newTestBroker(t *testing.T) messaging.Broker {
	t.Helper()
	srv := miniredis.RunT(t)

	logger := zerolog.Nop()
	broker, err := NewRedisBroker(Config{URL: "redis://" + srv.Addr()}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { broker.Close() })
	return broker
}

func TestPublishReachesSubscriber(t *testing.T) {
	broker := newTestBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := broker.Subscribe(ctx, messaging.ChannelBroadcastCreated)
	require.NoError(t, err)

	sent := messaging.Message{
		Type: messaging.ChannelBroadcastCreated,
		Payload: map[string]interface{}{
			"broadcast_id": "b-1",
			"recipients":   float64(5),
		},
	}

	// Subscribe confirms attachment before returning, so this publish is
	// visible to the subscriber.
	require.NoError(t, broker.Publish(ctx, messaging.ChannelBroadcastCreated, sent))

	var raw []byte
	select {
	case raw = <-msgs:
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	var got messaging.Message
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, messaging.ChannelBroadcastCreated, got.Type)
	payload, ok := got.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "b-1", payload["broadcast_id"])
}

func TestSubscribeClosesOnContextCancel(t *testing.T) {
	broker := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := broker.Subscribe(ctx, messaging.ChannelBackfillApplied)
	require.NoError(t, err)

	cancel()
	select {
	case _, open := <-msgs:
		assert.False(t, open, "channel must close after cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("subscription channel did not close")
	}
}

func TestNewRedisBrokerBadURL(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewRedisBroker(Config{URL: "not-a-redis-url"}, &logger)
	assert.Error(t, err)
}
