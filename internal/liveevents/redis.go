package liveevents

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBridge publishes locally and to a redis channel, and replays events
// from other instances into the local hub.
type RedisBridge struct {
	hub     *Hub
	client  *redis.Client
	channel string
	origin  string
	log     *zap.Logger

	newBackOff func() backoff.BackOff
	attempts   atomic.Int64
}

func NewRedisBridge(hub *Hub, client *redis.Client, channel string, log *zap.Logger) *RedisBridge {
	return &RedisBridge{
		hub:     hub,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log.Named("liveevents.redis"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

func (b *RedisBridge) Publish(ctx context.Context, event Event) {
	event.Origin = b.origin
	b.hub.Publish(ctx, event)

	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error("failed to encode event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		// Remote caches expire through their TTL if this is lost.
		b.log.Warn("failed to publish event", zap.String("type", event.Type), zap.Error(err))
	}
}

// RunForever keeps the subscription alive until ctx is cancelled, backing off
// between attempts. Events missed while disconnected cannot be replayed, so
// every successful resubscribe publishes a local resync.
func (b *RedisBridge) RunForever(ctx context.Context) {
	bo := b.newBackOff()
	bo.Reset()
	for {
		err := b.run(ctx, func(reconnected bool) {
			bo.Reset()
			if reconnected {
				b.hub.Publish(ctx, Event{Type: TypeResync, OccurredAt: time.Now().UTC(), Origin: b.origin})
			}
		})
		if ctx.Err() != nil {
			return
		}
		wait := bo.NextBackOff()
		b.log.Warn("redis event bridge disconnected, retrying",
			zap.Int64("attempt", b.attempts.Load()),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// run forwards remote events to the hub until ctx is cancelled or the
// subscription fails. connected fires once the subscription is confirmed.
func (b *RedisBridge) run(ctx context.Context, connected func(reconnected bool)) error {
	attempt := b.attempts.Add(1)
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	connected(attempt > 1)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			b.forward(ctx, msg.Payload)
		}
	}
}

func (b *RedisBridge) forward(ctx context.Context, payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		b.log.Warn("dropping malformed event", zap.Error(err))
		return
	}
	if event.Origin == b.origin {
		return
	}
	b.hub.Publish(ctx, event)
}
