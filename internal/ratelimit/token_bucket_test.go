package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/karat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBucketResultRetryAfter(t *testing.T) {
	res := bucketResult(false, 0.5, 2, 10)
	assert.False(t, res.Allowed)
	assert.Equal(t, 250*time.Millisecond, res.RetryAfter)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 10, res.Limit)

	res = bucketResult(true, 3.7, 2, 10)
	assert.True(t, res.Allowed)
	assert.Equal(t, time.Duration(0), res.RetryAfter)
	assert.Equal(t, 3, res.Remaining)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(2, 10))
	assert.Equal(t, time.Second, bucketTTL(1000, 1))
}

func TestScriptValuesParse(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(1), castToInt("1"))
	assert.InDelta(t, 4.25, castToFloat("4.25"), 1e-9)
	assert.InDelta(t, 3.0, castToFloat(int64(3)), 1e-9)
	assert.Equal(t, 0.0, castToFloat(nil))
}

func TestNewLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewLimiter(config.Config{}, nil, zap.NewNop()))

	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, QuoteRate: 5, QuoteBurst: 10}}
	assert.Nil(t, NewLimiter(cfg, nil, zap.NewNop()))
}

func TestNilBucketRefuses(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	require.Error(t, err)
}
