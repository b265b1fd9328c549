package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	// BackendMemory uses the in-memory store
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis as the backend
	BackendRedis Backend = "redis"
)

// Config holds configuration for creating a Store instance
type Config struct {
	Backend Backend

	// RedisURL is either redis://[:password@]host:port/db or a bare host:port.
	RedisURL string

	// JanitorInterval controls how often the in-memory store evicts expired
	// keys. Default: 30 seconds.
	JanitorInterval time.Duration

	// FailoverEnabled keeps an in-memory store behind Redis and switches to it
	// while Redis is unreachable.
	FailoverEnabled bool

	// ProbeInterval controls how often Redis is probed after a failover.
	// Default: 5 seconds.
	ProbeInterval time.Duration

	// StartupProbeTimeout bounds the initial Redis ping. Default: 1 second.
	StartupProbeTimeout time.Duration

	Logger LogFunc
}

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// StoreFactory defines a function that creates a Store instance
type StoreFactory func(cfg Config) (Store, error)

var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

// NewStoreFromConfig creates a new Store instance based on the provided configuration
func NewStoreFromConfig(cfg Config) (Store, error) {
	if cfg.JanitorInterval == 0 {
		cfg.JanitorInterval = 30 * time.Second
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	if cfg.StartupProbeTimeout == 0 {
		cfg.StartupProbeTimeout = 1 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = func(string, ...any) {}
	}

	switch cfg.Backend {
	case BackendMemory:
		return newBackend(BackendMemory, cfg)
	case BackendRedis:
		return createRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

func newBackend(backend Backend, cfg Config) (Store, error) {
	factory, ok := factories[backend]
	if !ok {
		return nil, fmt.Errorf("%s backend not registered", backend)
	}
	return factory(cfg)
}

// createRedisStore never fails because Redis is down: it degrades to the
// in-memory store and, with failover enabled, keeps probing Redis.
func createRedisStore(cfg Config) (Store, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
	}

	memoryStore, err := newBackend(BackendMemory, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory store: %w", err)
	}

	redisStore, err := newBackend(BackendRedis, cfg)
	if err != nil {
		cfg.Logger("Redis unavailable at startup; using in-memory store", "error", err.Error())
		return memoryStore, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupProbeTimeout)
	defer cancel()
	healthy := redisStore.Ping(ctx) == nil

	if !cfg.FailoverEnabled {
		if !healthy {
			redisStore.Close()
			cfg.Logger("Redis health check failed at startup, using in-memory store")
			return memoryStore, nil
		}
		memoryStore.Close()
		return redisStore, nil
	}

	if !healthy {
		cfg.Logger("Redis unhealthy at startup; using in-memory store (will retry in background)")
		return NewFailoverStoreWithFallbackActive(redisStore, memoryStore, cfg.ProbeInterval, cfg.Logger), nil
	}

	cfg.Logger("Redis healthy at startup; using Redis with in-memory failover")
	return NewFailoverStore(redisStore, memoryStore, cfg.ProbeInterval, cfg.Logger), nil
}
