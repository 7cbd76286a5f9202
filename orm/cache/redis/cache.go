package redis

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/coderi421/ratorm/orm"
)

var _ orm.Cache = &Cache{}

// Option is a function type for configuring a Cache.
type Option func(c *Cache)

// Cache 把行缓存放在 redis 里，多个进程之间共享
type Cache struct {
	prefix     string
	client     redis.Cmdable
	expiration time.Duration
}

func NewCache(client redis.Cmdable, opts ...Option) *Cache {
	res := &Cache{
		client:     client,
		expiration: time.Minute * 15,
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// WithPrefix 在 orm 生成的 key 前面再加一层前缀
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithExpiration Set 传入 0 的时候使用的过期时间
func WithExpiration(expiration time.Duration) Option {
	return func(c *Cache) {
		c.expiration = expiration
	}
}

func (c *Cache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, orm.ErrCacheMiss
	}
	return val, err
}

func (c *Cache) Set(ctx context.Context, key string, val []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = c.expiration
	}
	return c.client.Set(ctx, c.key(key), val, expiration).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}
