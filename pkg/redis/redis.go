package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Nil is the reply returned when a key does not exist.
var Nil = goredis.Nil

// Adapter wraps a universal redis client and prefixes every key it touches,
// so several services can share one instance without stepping on each other.
type Adapter struct {
	client goredis.UniversalClient
	prefix string
}

// NewAdapter connects to redis and verifies the connection with a ping.
func NewAdapter(ctx context.Context, prefix string, opts *goredis.UniversalOptions) (*Adapter, error) {
	client := goredis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	return &Adapter{client: client, prefix: prefix}, nil
}

func (a *Adapter) key(k string) string {
	if a.prefix == "" {
		return k
	}
	return a.prefix + ":" + k
}

func (a *Adapter) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.client.Set(ctx, a.key(key), value, ttl).Err()
}

func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	return a.client.Get(ctx, a.key(key)).Result()
}

func (a *Adapter) Del(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = a.key(k)
	}
	return a.client.Del(ctx, prefixed...).Err()
}

func (a *Adapter) SAdd(ctx context.Context, key string, members ...interface{}) error {
	return a.client.SAdd(ctx, a.key(key), members...).Err()
}

func (a *Adapter) SRem(ctx context.Context, key string, members ...interface{}) error {
	return a.client.SRem(ctx, a.key(key), members...).Err()
}

func (a *Adapter) SMembers(ctx context.Context, key string) ([]string, error) {
	return a.client.SMembers(ctx, a.key(key)).Result()
}

// Client exposes the underlying client for callers that need commands the
// adapter does not wrap.
func (a *Adapter) Client() goredis.UniversalClient {
	return a.client
}

func (a *Adapter) Close() error {
	return a.client.Close()
}
