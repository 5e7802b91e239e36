package livesync

import (
	"github.com/smallbiznis/karat/internal/pricing"
	"go.uber.org/fx"
)

var Module = fx.Module("livesync",
	fx.Provide(New),
	fx.Provide(func(c *Coordinator) pricing.QuoteCache { return c }),
	fx.Invoke(func(*Coordinator) {}),
)
