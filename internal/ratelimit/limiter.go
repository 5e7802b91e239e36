package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/karat/internal/config"
	"go.uber.org/zap"
)

const (
	ScopeQuote    = "quote"
	ScopeCheckout = "checkout"

	keyPattern = "karat:ratelimit:%s:%s"
)

type bucketLimit struct {
	rate  float64
	burst int
}

// Limiter throttles storefront quote and checkout calls per client. It
// fails open: a redis error lets the request through.
type Limiter struct {
	bucket *TokenBucket
	limits map[string]bucketLimit
	log    *zap.Logger
}

// NewLimiter returns nil when limiting is disabled or redis is not configured.
func NewLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *Limiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil
	}
	if client == nil {
		log.Warn("rate limiting requested without redis, disabled")
		return nil
	}
	return &Limiter{
		bucket: NewTokenBucket(client),
		limits: map[string]bucketLimit{
			ScopeQuote:    {rate: limitCfg.QuoteRate, burst: limitCfg.QuoteBurst},
			ScopeCheckout: {rate: limitCfg.CheckoutRate, burst: limitCfg.CheckoutBurst},
		},
		log: log.Named("ratelimit"),
	}
}

func (l *Limiter) Allow(ctx context.Context, scope, clientKey string) (*Result, error) {
	limit, ok := l.limits[scope]
	if !ok || limit.rate <= 0 || limit.burst <= 0 {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyPattern, scope, strings.TrimSpace(clientKey))
	res, err := l.bucket.Allow(ctx, key, limit.rate, limit.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return &Result{Allowed: true, Limit: limit.burst}, nil
	}
	return res, nil
}
