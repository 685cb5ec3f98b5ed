package blobcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (r *RedisCache) Put(ctx context.Context, ref Ref, data []byte, ttl time.Duration) error {
	if ref == "" {
		return ErrEmptyRef
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := r.rdb.Set(ctx, string(ref), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", ref, err)
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, ref Ref) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, string(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", ref, err)
	}
	return data, true, nil
}

func (r *RedisCache) Delete(ctx context.Context, refs ...Ref) error {
	if len(refs) == 0 {
		return nil
	}
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = string(ref)
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Connect returns a Redis-backed cache for url, or an in-memory cache with
// a non-nil error when Redis cannot be reached.
func Connect(ctx context.Context, url string) (Cache, *redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return NewMemoryCache(), nil, fmt.Errorf("redis unreachable at %s: %w", url, err)
	}
	return NewRedisCache(rdb), rdb, nil
}
