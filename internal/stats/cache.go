package stats

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores computed reports until the next Invalidate. Get returns the
// slot it looked in; a miss is filled by passing that slot to Set, so a
// report computed before an Invalidate is never served after it. An empty
// slot means nothing should be stored.
type Cache interface {
	Get(ctx context.Context, name string, dst any) (hit bool, slot string, err error)
	Set(ctx context.Context, slot string, v any) error
	Invalidate(ctx context.Context) error
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) (bool, string, error) { return false, "", nil }
func (NopCache) Set(context.Context, string, any) error                 { return nil }
func (NopCache) Invalidate(context.Context) error                       { return nil }

// RedisCache namespaces keys under a generation counter. Invalidate bumps
// the counter so stale entries are never read again and expire on TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache uses prefix "emargement:stats:" when prefix is empty.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "emargement:stats:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) genKey() string { return c.prefix + "gen" }

func (c *RedisCache) key(ctx context.Context, name string) (string, error) {
	gen, err := c.client.Get(ctx, c.genKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return c.prefix + strconv.FormatInt(gen, 10) + ":" + name, nil
}

func (c *RedisCache) Get(ctx context.Context, name string, dst any) (bool, string, error) {
	key, err := c.key(ctx, name)
	if err != nil {
		return false, "", err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, key, nil
	}
	if err != nil {
		return false, "", err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, key, err
	}
	return true, key, nil
}

// Set stores v in a slot returned by Get.
func (c *RedisCache) Set(ctx context.Context, slot string, v any) error {
	if slot == "" {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, slot, raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, c.genKey()).Err()
}
