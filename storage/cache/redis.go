package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

const keyPrefix = "certstudio:raster:"

// RedisCache keeps rendered certificates in redis, shared by every api instance.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ certificate.RasterCache = (*RedisCache)(nil)

func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return errors.Wrap(c.client.Ping(ctx).Err(), "pinging redis")
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "reading cached raster")
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, png []byte) error {
	return errors.Wrap(c.client.Set(ctx, keyPrefix+key, png, c.ttl).Err(), "caching raster")
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// New returns the cache configured in conf: redis when a url is set, memory otherwise.
func New(conf *core.Config) (certificate.RasterCache, func() error, error) {
	if conf.Cache.RedisURL == "" {
		return NewMemoryCache(defaultMemoryEntries), func() error { return nil }, nil
	}
	c, err := NewRedisCache(conf.Cache.RedisURL, conf.Cache.TTL)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}
