package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/bytehub/config"
)

// Limiter defines the interface for rate limiting operations
type Limiter interface {
	// Allow reports whether one more request fits under limit within window
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// AllowN reports whether n more requests fit under limit within window
	AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error)

	// Reset clears the counters of key for the common windows
	Reset(ctx context.Context, key string) error

	// GetRemaining returns the number of requests left in the current window
	GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// WindowLimiter counts requests per fixed time window in Redis. Counters are
// shared by every instance pointing at the same Redis.
type WindowLimiter struct {
	redisClient *redis.Client
	logger      *zap.Logger
	fallback    bool // allow requests when Redis is unavailable (fail-open)
	now         func() time.Time
}

func NewWindowLimiter(redisClient *redis.Client, logger *zap.Logger, fallback bool) *WindowLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowLimiter{
		redisClient: redisClient,
		logger:      logger,
		fallback:    fallback,
		now:         time.Now,
	}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.AllowN(ctx, key, 1, limit, window)
}

func (l *WindowLimiter) AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error) {
	bucketKey := l.getBucketKey(key, l.now(), window)

	pipe := l.redisClient.Pipeline()
	incrCmd := pipe.IncrBy(ctx, bucketKey, int64(n))
	pipe.Expire(ctx, bucketKey, window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limit check failed",
			zap.String("key", bucketKey),
			zap.Error(err),
		)
		if l.fallback {
			l.logger.Warn("rate limit check failed, allowing request (fail-open)",
				zap.String("key", key),
			)
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incrCmd.Val()
	allowed := count <= int64(limit)
	if !allowed {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", limit),
			zap.Duration("window", window),
		)
	}
	return allowed, nil
}

func (l *WindowLimiter) Reset(ctx context.Context, key string) error {
	now := l.now()
	windows := []time.Duration{time.Minute, time.Hour, 24 * time.Hour}

	var keys []string
	for _, window := range windows {
		keys = append(keys, l.getBucketKey(key, now, window))
		keys = append(keys, l.getBucketKey(key, now.Add(-window), window))
	}

	if err := l.redisClient.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for key %s: %w", key, err)
	}
	l.logger.Info("rate limit reset", zap.String("key", key))
	return nil
}

func (l *WindowLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	bucketKey := l.getBucketKey(key, l.now(), window)

	count, err := l.redisClient.Get(ctx, bucketKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return limit, nil
		}
		return 0, fmt.Errorf("failed to get remaining tokens: %w", err)
	}
	return max(limit-int(count), 0), nil
}

// getBucketKey maps now onto the window-sized bucket that contains it
func (l *WindowLimiter) getBucketKey(key string, now time.Time, window time.Duration) string {
	size := int64(window / time.Second)
	if size <= 0 {
		size = 1
	}
	return fmt.Sprintf("ratelimit:%s:%d", key, now.Unix()/size)
}

// Endpoint groups sharing one limit
const (
	EndpointPurchase = "purchase"
	EndpointBoost    = "boost"
	EndpointAPI      = "api"
)

// Rule is a limit over a window
type Rule struct {
	Limit  int
	Window time.Duration
}

// GetRuleForEndpoint returns the configured rule for an endpoint group
func GetRuleForEndpoint(endpoint string, cfg *config.RateLimitConfig) Rule {
	switch endpoint {
	case EndpointPurchase:
		return Rule{Limit: cfg.PurchasePerMinute, Window: time.Minute}
	case EndpointBoost:
		return Rule{Limit: cfg.BoostPerMinute, Window: time.Minute}
	case EndpointAPI:
		return Rule{Limit: cfg.APIPerMinute, Window: time.Minute}
	default:
		return Rule{Limit: 100, Window: time.Minute}
	}
}
