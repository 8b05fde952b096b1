package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wingspan/pkg/models"
)

const homeCacheKey = "wingspan:home"

// HomeLoader builds the front page from storage.
type HomeLoader func(ctx context.Context) (models.HomePage, error)

// ErrCacheMiss is returned by a SharedCache when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// SharedCache is the slice of Redis the home cache needs.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisCache struct {
	rdb *redis.Client
}

// NewRedisCache adapts a go-redis client for HomeCache.
func NewRedisCache(rdb *redis.Client) SharedCache {
	return redisCache{rdb: rdb}
}

func (r redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (r redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r redisCache) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// HomeCache keeps the composed front page. With a shared cache every instance
// sees the same copy; otherwise it lives in process memory for ttl.
type HomeCache struct {
	mu       sync.Mutex
	page     models.HomePage
	loaded   bool
	loadedAt time.Time
	// gen counts invalidations so a load that raced one is not stored.
	gen uint64

	ttl    time.Duration
	load   HomeLoader
	shared SharedCache
	logger *zap.Logger
	now    func() time.Time
}

// NewHomeCache returns a cache around load. shared may be nil.
func NewHomeCache(load HomeLoader, ttl time.Duration, shared SharedCache, logger *zap.Logger) *HomeCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HomeCache{
		ttl:    ttl,
		load:   load,
		shared: shared,
		logger: logger.Named("home-cache"),
		now:    time.Now,
	}
}

func (c *HomeCache) Get(ctx context.Context) (models.HomePage, error) {
	if c.shared != nil {
		raw, err := c.shared.Get(ctx, homeCacheKey)
		if err == nil {
			var page models.HomePage
			if err := json.Unmarshal(raw, &page); err == nil {
				return page, nil
			}
			c.logger.Warn("discarding undecodable cached home page")
		} else if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("shared cache read failed", zap.Error(err))
		}
		return c.Refresh(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded && (c.ttl <= 0 || c.now().Sub(c.loadedAt) < c.ttl) {
		return c.page, nil
	}
	page, err := c.load(ctx)
	if err != nil {
		return models.HomePage{}, err
	}
	c.page, c.loaded, c.loadedAt = page, true, c.now()
	return page, nil
}

// Refresh reloads the page and stores it regardless of age. A page loaded
// while Invalidate ran is returned but not stored.
func (c *HomeCache) Refresh(ctx context.Context) (models.HomePage, error) {
	c.mu.Lock()
	start := c.gen
	c.mu.Unlock()

	page, err := c.load(ctx)
	if err != nil {
		return models.HomePage{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != start {
		c.logger.Debug("dropping home page loaded during invalidation")
		return page, nil
	}

	if c.shared != nil {
		raw, err := json.Marshal(page)
		if err == nil {
			err = c.shared.Set(ctx, homeCacheKey, raw, c.ttl)
		}
		if err != nil {
			c.logger.Warn("shared cache write failed", zap.Error(err))
		}
		return page, nil
	}

	c.page, c.loaded, c.loadedAt = page, true, c.now()
	return page, nil
}

// Invalidate drops the cached page so the next Get reloads it.
func (c *HomeCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
	if c.shared != nil {
		if err := c.shared.Del(ctx, homeCacheKey); err != nil {
			c.logger.Warn("shared cache invalidate failed", zap.Error(err))
		}
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.page = models.HomePage{}
}
