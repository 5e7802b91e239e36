package liveevents

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/karat/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("liveevents",
	fx.Provide(NewHub),
	fx.Provide(providePublisher),
)

func providePublisher(lc fx.Lifecycle, hub *Hub, client *redis.Client, cfg config.Config, log *zap.Logger) Publisher {
	if client == nil {
		return hub
	}
	bridge := NewRedisBridge(hub, client, cfg.Redis.EventChannel, log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				bridge.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
	return bridge
}
