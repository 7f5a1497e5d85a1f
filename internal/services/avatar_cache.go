package services

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultAvatarCacheTTL = time.Hour

// AvatarCache holds encoded avatar PNGs by blob key.
type AvatarCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

type redisAvatarCache struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisAvatarCache(rdb goredis.UniversalClient, ttl time.Duration) AvatarCache {
	if ttl <= 0 {
		ttl = DefaultAvatarCacheTTL
	}
	return &redisAvatarCache{rdb: rdb, prefix: "bonfires:avatar:", ttl: ttl}
}

func (c *redisAvatarCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *redisAvatarCache) Set(ctx context.Context, key string, data []byte) error {
	return c.rdb.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

func (c *redisAvatarCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}

// NopAvatarCache never hits.
type NopAvatarCache struct{}

func (NopAvatarCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NopAvatarCache) Set(context.Context, string, []byte) error         { return nil }
func (NopAvatarCache) Delete(context.Context, string) error              { return nil }
