package liveevents

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBridge(t *testing.T, addr string) (*RedisBridge, *Hub, *[]Event) {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub()
	var seen []Event
	hub.Handle(func(e Event) { seen = append(seen, e) })
	bridge := NewRedisBridge(hub, client, "karat.test.events", zap.NewNop())
	bridge.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(5 * time.Millisecond) }
	return bridge, hub, &seen
}

func encode(t *testing.T, e Event) string {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return string(b)
}

func TestForwardRelaysRemoteEvents(t *testing.T) {
	bridge, _, seen := newBridge(t, "127.0.0.1:1")

	bridge.forward(context.Background(), encode(t, Event{Type: TypeRateChanged, RateID: "7", Origin: "other-instance"}))

	require.Len(t, *seen, 1)
	assert.Equal(t, "7", (*seen)[0].RateID)
}

func TestForwardSkipsOwnEvents(t *testing.T) {
	bridge, _, seen := newBridge(t, "127.0.0.1:1")

	bridge.forward(context.Background(), encode(t, Event{Type: TypeRateChanged, RateID: "7", Origin: bridge.origin}))

	assert.Empty(t, *seen)
}

func TestForwardDropsMalformedPayload(t *testing.T) {
	bridge, _, seen := newBridge(t, "127.0.0.1:1")

	bridge.forward(context.Background(), "{not json")

	assert.Empty(t, *seen)
}

func TestRunForeverRetriesUnreachableRedis(t *testing.T) {
	bridge, _, seen := newBridge(t, "127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		bridge.RunForever(ctx)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop after context cancellation")
	}
	assert.GreaterOrEqual(t, bridge.attempts.Load(), int64(2))
	// never connected, so no resync was announced
	assert.Empty(t, *seen)
}
