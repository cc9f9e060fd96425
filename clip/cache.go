package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
)

// URLCache stores resolved asset URLs keyed by clip id.
type URLCache interface {
	Get(ctx context.Context, clipID string) (string, bool, error)
	Set(ctx context.Context, clipID, assetURL string, ttl time.Duration) error
}

// CachedResolver consults cache before delegating to next. Cache errors are
// logged and otherwise ignored.
type CachedResolver struct {
	next   Resolver
	cache  URLCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedResolver(next Resolver, cache URLCache, ttl time.Duration, logger *slog.Logger) *CachedResolver {
	return &CachedResolver{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logging.WithComponent(logger, "clip"),
	}
}

func (c *CachedResolver) Resolve(ctx context.Context, clipID, accessToken string) (string, error) {
	if asset, ok, err := c.cache.Get(ctx, clipID); err != nil {
		c.logger.Warn("resolve cache read failed", "clip_id", clipID, "error", err)
	} else if ok {
		return asset, nil
	}

	asset, err := c.next.Resolve(ctx, clipID, accessToken)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, clipID, asset, c.ttl); err != nil {
		c.logger.Warn("resolve cache write failed", "clip_id", clipID, "error", err)
	}
	return asset, nil
}

// RedisCache is a URLCache backed by plain Redis string keys.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts), prefix: "clipcompiler:asset:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, clipID string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+clipID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, clipID, assetURL string, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+clipID, assetURL, ttl).Err()
}

// Ping verifies the connection at start-up.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
