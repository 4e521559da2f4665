package cache

import (
    "context"
    "encoding/json"
    "errors"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Redis implements Cache over a shared Redis instance so every replica sees
// the same latest optimization.
type Redis struct {
    rdb    *redis.Client
    prefix string
}

func NewRedis(url, prefix string) (*Redis, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    return &Redis{rdb: redis.NewClient(opt), prefix: prefix}, nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rdb *redis.Client, prefix string) *Redis {
    return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
    b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
    if errors.Is(err, redis.Nil) { return false, nil }
    if err != nil { return false, err }
    return true, json.Unmarshal(b, dst)
}

func (r *Redis) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
    data, err := json.Marshal(v)
    if err != nil { return err }
    return r.rdb.Set(ctx, r.prefix+key, data, ttl).Err()
}

func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.rdb.Close() }
