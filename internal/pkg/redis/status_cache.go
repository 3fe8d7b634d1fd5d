package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// genTTL outlives any status fill in flight
const genTTL = 24 * time.Hour

// fillScript stores the payload only while the generation read at lookup
// time is still current. A missing generation counts as "0".
var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if (gen or "0") ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// StatusCache stores the serialized membership status projection per user.
// Callers own the encoding; the cache only moves bytes. Every invalidation
// bumps a per-user generation so a fill computed before it is discarded.
type StatusCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewStatusCache(client RedisClient, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(userID string) string {
	return fmt.Sprintf("membership:%s:status", userID)
}

func genKey(userID string) string {
	return fmt.Sprintf("membership:%s:status_gen", userID)
}

// Get returns the cached payload and whether it was present, along with the
// generation a later Fill has to match.
func (c *StatusCache) Get(ctx context.Context, userID string) ([]byte, int64, bool, error) {
	vals, err := c.client.GetClient().MGet(ctx, statusKey(userID), genKey(userID)).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read status of user %s: %w", userID, err)
	}

	var gen int64
	if raw, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, 0, false, fmt.Errorf("bad status generation of user %s: %w", userID, err)
		}
	}
	payload, ok := vals[0].(string)
	if !ok {
		return nil, gen, false, nil
	}
	return []byte(payload), gen, true, nil
}

// Fill caches payload unless the user was invalidated after gen was read.
// It reports whether the payload was stored.
func (c *StatusCache) Fill(ctx context.Context, userID string, gen int64, payload []byte) (bool, error) {
	stored, err := fillScript.Run(ctx, c.client.GetClient(),
		[]string{statusKey(userID), genKey(userID)},
		strconv.FormatInt(gen, 10), payload, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to cache status of user %s: %w", userID, err)
	}
	return stored == 1, nil
}

func (c *StatusCache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.client.GetClient().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(userID))
		pipe.Expire(ctx, genKey(userID), genTTL)
		pipe.Del(ctx, statusKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate status of user %s: %w", userID, err)
	}
	return nil
}
