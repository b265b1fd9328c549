package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polyscreen/polyscreen-backend/pkg/kv"
)

// Store is a Redis-backed implementation of the kv.Store interface
type Store struct {
	client *redis.Client
}

var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"connection closed",
	"client is closed",
	"EOF",
}

// IsConnectionError checks if an error is a connection-related error that should trigger failover
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	msg := err.Error()
	for _, s := range connectionErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return kv.ErrNotFound
	}
	if IsConnectionError(err) {
		return fmt.Errorf("%w: %v", kv.ErrBackendUnavailable, err)
	}
	return err
}

// Options parses a redis:// URL or a bare host:port address.
func Options(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		return redis.ParseURL(addr)
	}
	if addr == "" {
		return nil, fmt.Errorf("empty redis address")
	}
	return &redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}, nil
}

// New creates a Redis-backed store. It does not contact the server; callers
// decide when to Ping.
func New(addr string) (*Store, error) {
	opt, err := Options(addr)
	if err != nil {
		return nil, err
	}
	return &Store{client: redis.NewClient(opt)}, nil
}

// NewFromClient wraps an existing client. Close closes the client.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	var expiration time.Duration
	if len(ttl) > 0 && ttl[0] > 0 {
		expiration = ttl[0]
	}
	return wrap(s.client.Set(ctx, key, value, expiration).Err())
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, wrap(err)
	}
	return v, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	return n, wrap(err)
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Exists(ctx, keys...).Result()
	return n, wrap(err)
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	return ok, wrap(err)
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrap(err)
	}
	// go-redis reports -2 for a missing key and -1 for no expiry, in
	// nanosecond units for both.
	switch d {
	case -2:
		return 0, kv.ErrNotFound
	case -1:
		return -1, nil
	}
	return d, nil
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	v, err := s.client.IncrBy(ctx, key, n).Result()
	return v, wrap(err)
}

func (s *Store) Ping(ctx context.Context) error {
	return wrap(s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}
