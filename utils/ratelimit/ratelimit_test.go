package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/bytehub/config"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestWindowLimiter_Allow(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, zap.NewNop(), false)
	limiter.now = fixedClock(time.Unix(1_700_000_000, 0))

	ctx := context.Background()
	for i := range 5 {
		allowed, err := limiter.Allow(ctx, "purchase:user:1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "purchase:user:1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestWindowLimiter_AllowN(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, nil, false)
	ctx := context.Background()

	allowed, err := limiter.AllowN(ctx, "k", 3, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.AllowN(ctx, "k", 3, 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestWindowLimiter_NextWindowRecovers(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, nil, false)
	start := time.Unix(1_700_000_040, 0)
	limiter.now = fixedClock(start)
	ctx := context.Background()

	for range 2 {
		_, err := limiter.Allow(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
	}
	allowed, err := limiter.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	limiter.now = fixedClock(start.Add(time.Minute))
	allowed, err = limiter.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestWindowLimiter_ResetAndRemaining(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, nil, false)
	limiter.now = fixedClock(time.Unix(1_700_000_000, 0))
	ctx := context.Background()

	remaining, err := limiter.GetRemaining(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	for range 7 {
		_, err := limiter.Allow(ctx, "k", 5, time.Minute)
		require.NoError(t, err)
	}
	remaining, err = limiter.GetRemaining(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	require.NoError(t, limiter.Reset(ctx, "k"))
	remaining, err = limiter.GetRemaining(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}

func TestWindowLimiter_ConcurrentRequests(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, nil, false)
	limiter.now = fixedClock(time.Unix(1_700_000_000, 0))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.Allow(ctx, "shared", 20, time.Minute)
			if err == nil && ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, allowed)
}

func TestWindowLimiter_DifferentKeys(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, nil, false)
	ctx := context.Background()

	for i := range 3 {
		allowed, err := limiter.Allow(ctx, fmt.Sprintf("user:%d", i), 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestWindowLimiter_FailOpen(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	limiter := NewWindowLimiter(client, nil, true)
	allowed, err := limiter.Allow(context.Background(), "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestWindowLimiter_FailClosed(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	limiter := NewWindowLimiter(client, nil, false)
	allowed, err := limiter.Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestGetRuleForEndpoint(t *testing.T) {
	cfg := &config.RateLimitConfig{PurchasePerMinute: 5, BoostPerMinute: 30, APIPerMinute: 300}

	assert.Equal(t, Rule{Limit: 5, Window: time.Minute}, GetRuleForEndpoint(EndpointPurchase, cfg))
	assert.Equal(t, Rule{Limit: 30, Window: time.Minute}, GetRuleForEndpoint(EndpointBoost, cfg))
	assert.Equal(t, Rule{Limit: 300, Window: time.Minute}, GetRuleForEndpoint(EndpointAPI, cfg))
	assert.Equal(t, 100, GetRuleForEndpoint("unknown", cfg).Limit)
}
