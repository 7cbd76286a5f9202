package memory

import (
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/coderi421/ratorm/orm"
)

var _ orm.Cache = &Cache{}

// Cache 进程内的行缓存，过期由 go-cache 负责清理
type Cache struct {
	c *cache.Cache
}

// NewCache expiration 是 Set 传入 0 的时候使用的默认过期时间
func NewCache(expiration time.Duration) *Cache {
	return &Cache{
		c: cache.New(expiration, time.Second),
	}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := c.c.Get(key)
	if !ok {
		return nil, orm.ErrCacheMiss
	}
	return val.([]byte), nil
}

func (c *Cache) Set(_ context.Context, key string, val []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = cache.DefaultExpiration
	}
	// 复制一份，避免调用方之后修改底层数组
	data := make([]byte, len(val))
	copy(data, val)
	c.c.Set(key, data, expiration)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Delete(key)
	return nil
}
