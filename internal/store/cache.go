package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/polyscreen/polyscreen-backend/internal/metrics"
	"github.com/polyscreen/polyscreen-backend/pkg/kv"
	_ "github.com/polyscreen/polyscreen-backend/pkg/kv/memory"
	rediskv "github.com/polyscreen/polyscreen-backend/pkg/kv/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache keys and channels
const (
	KeyEvents         = "polyscreen:events"
	KeyMarkets        = "polyscreen:markets"
	KeyDashboard      = "polyscreen:dashboard"
	KeyCategories     = "polyscreen:categories"
	KeyDatasetVersion = "polyscreen:dataset:version"

	ChannelDashboard = "polyscreen:dashboard"
)

// Cache stores JSON snapshots in a kv.Store and fans out notifications over
// Redis pub/sub, or over an in-process hub when Redis is not configured or
// not reachable.
type Cache struct {
	store kv.Store
	// nil when pub/sub goes through hub
	client *redis.Client
	hub    *PubSubHub

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewCache connects to Redis at addr. An empty addr, or a Redis that does
// not answer at startup, selects the in-memory store and hub. With Redis up,
// the kv store fails over to memory if Redis goes away later.
func NewCache(addr string, logger *zap.SugaredLogger, m *metrics.Metrics) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.NewNoop()
	}

	if addr == "" {
		st, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
		if err != nil {
			return nil, err
		}
		logger.Infow("No Redis address configured; using in-memory cache")
		return newCache(st, nil, logger, m), nil
	}

	opt, err := rediskv.Options(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid redis address: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("Redis unavailable; using in-memory cache with in-process pubsub", "error", err)
		client.Close()

		st, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
		if err != nil {
			return nil, err
		}
		return newCache(st, nil, logger, m), nil
	}

	st, err := kv.NewStoreFromConfig(kv.Config{
		Backend:         kv.BackendRedis,
		RedisURL:        addr,
		FailoverEnabled: true,
		Logger:          logger.Infow,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	return newCache(st, client, logger, m), nil
}

// NewCacheWithStore wraps an existing store with in-process pub/sub.
func NewCacheWithStore(st kv.Store, logger *zap.SugaredLogger, m *metrics.Metrics) *Cache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return newCache(st, nil, logger, m)
}

func newCache(st kv.Store, client *redis.Client, logger *zap.SugaredLogger, m *metrics.Metrics) *Cache {
	c := &Cache{
		store:   st,
		client:  client,
		logger:  logger,
		metrics: m,
	}
	if client == nil {
		c.hub = NewPubSubHub()
	}
	return c
}

func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			c.metrics.RecordCacheMiss(ctx, key)
			return ErrCacheMiss
		}
		c.logger.Errorw("Cache get error", "key", key, "error", err)
		return fmt.Errorf("cache get error: %w", err)
	}

	c.metrics.RecordCacheHit(ctx, key)
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

// Set stores value as JSON. A zero ttl keeps the key until overwritten.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	var ttls []time.Duration
	if ttl > 0 {
		ttls = append(ttls, ttl)
	}
	if err := c.store.Set(ctx, key, data, ttls...); err != nil {
		c.logger.Errorw("Cache set error", "key", key, "error", err)
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := c.store.Del(ctx, keys...); err != nil {
		c.logger.Errorw("Cache delete error", "keys", keys, "error", err)
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache exists error: %w", err)
	}
	return n > 0, nil
}

// BumpVersion increments the dataset version counter.
func (c *Cache) BumpVersion(ctx context.Context) (int64, error) {
	v, err := c.store.IncrBy(ctx, KeyDatasetVersion, 1)
	if err != nil {
		return 0, fmt.Errorf("cache version error: %w", err)
	}
	return v, nil
}

// Version returns the dataset version counter, 0 before the first bump.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	data, err := c.store.Get(ctx, KeyDatasetVersion)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache version error: %w", err)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache version error: %w", err)
	}
	return v, nil
}

func (c *Cache) Publish(ctx context.Context, channel string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("publish marshal error: %w", err)
	}

	if c.client == nil {
		c.hub.Publish(channel, string(data))
		return nil
	}

	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		c.logger.Errorw("Publish error", "channel", channel, "error", err)
		return fmt.Errorf("publish error: %w", err)
	}
	return nil
}

// Subscribe returns a subscription that ends when ctx is done or Close is
// called.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) Subscription {
	if c.client == nil {
		return c.hub.Subscribe(ctx, channels...)
	}
	return newRedisSubscription(ctx, c.client.Subscribe(ctx, channels...))
}

func (c *Cache) IsInMemoryMode() bool {
	return c.client == nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *Cache) Close() error {
	var errs []error
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	errs = append(errs, c.store.Close())
	return errors.Join(errs...)
}
