package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// FailoverStore wraps a primary and fallback store, automatically failing over
// when the primary becomes unavailable and recovering when it becomes healthy again.
//
// Data written to the fallback is not copied back on recovery. For a cache
// that only costs a few misses.
type FailoverStore struct {
	primary       Store
	fallback      Store
	active        atomic.Pointer[Store]
	probeInterval time.Duration
	logger        LogFunc

	mu        sync.Mutex
	probing   bool
	probeStop chan struct{}
	probeDone chan struct{}
	closeOnce sync.Once
}

// NewFailoverStore creates a failover store that starts on the primary.
func NewFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	if logger == nil {
		logger = func(string, ...any) {}
	}
	fs := &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		probeInterval: probeInterval,
		logger:        logger,
	}
	fs.active.Store(&fs.primary)
	return fs
}

// NewFailoverStoreWithFallbackActive starts on the fallback and probes the
// primary for recovery (used when the primary fails at startup).
func NewFailoverStoreWithFallbackActive(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	fs := NewFailoverStore(primary, fallback, probeInterval, logger)
	fs.active.Store(&fs.fallback)
	fs.mu.Lock()
	fs.startProbingLocked()
	fs.mu.Unlock()
	return fs
}

// UsingFallback reports whether traffic currently goes to the fallback store.
func (fs *FailoverStore) UsingFallback() bool {
	return fs.active.Load() == &fs.fallback
}

func (fs *FailoverStore) current() Store {
	return *fs.active.Load()
}

func (fs *FailoverStore) demote() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.UsingFallback() {
		return
	}
	fs.active.Store(&fs.fallback)
	fs.logger("Failing over to in-memory store", "reason", "primary_unavailable")
	fs.startProbingLocked()
}

func (fs *FailoverStore) startProbingLocked() {
	if fs.probing {
		return
	}
	fs.probing = true
	fs.probeStop = make(chan struct{})
	fs.probeDone = make(chan struct{})
	go fs.probeLoop(fs.probeStop, fs.probeDone)
}

func (fs *FailoverStore) probeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(fs.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), fs.probeInterval/2)
			err := fs.primary.Ping(ctx)
			cancel()
			if err != nil {
				continue
			}

			fs.mu.Lock()
			fs.active.Store(&fs.primary)
			fs.probing = false
			fs.mu.Unlock()
			fs.logger("Recovered to primary store", "reason", "primary_healthy")
			return
		}
	}
}

// run executes fn on the active store, retrying once on the fallback when
// the primary reports itself unavailable.
func run[T any](fs *FailoverStore, fn func(Store) (T, error)) (T, error) {
	store := fs.current()
	result, err := fn(store)
	if err != nil && store == fs.primary && errors.Is(err, ErrBackendUnavailable) {
		fs.demote()
		return fn(fs.current())
	}
	return result, err
}

func (fs *FailoverStore) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	_, err := run(fs, func(s Store) (struct{}, error) {
		return struct{}{}, s.Set(ctx, key, value, ttl...)
	})
	return err
}

func (fs *FailoverStore) Get(ctx context.Context, key string) ([]byte, error) {
	return run(fs, func(s Store) ([]byte, error) { return s.Get(ctx, key) })
}

func (fs *FailoverStore) Del(ctx context.Context, keys ...string) (int64, error) {
	return run(fs, func(s Store) (int64, error) { return s.Del(ctx, keys...) })
}

func (fs *FailoverStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	return run(fs, func(s Store) (int64, error) { return s.Exists(ctx, keys...) })
}

func (fs *FailoverStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return run(fs, func(s Store) (bool, error) { return s.Expire(ctx, key, ttl) })
}

func (fs *FailoverStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return run(fs, func(s Store) (time.Duration, error) { return s.TTL(ctx, key) })
}

func (fs *FailoverStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return run(fs, func(s Store) (int64, error) { return s.IncrBy(ctx, key, n) })
}

// Ping reports the health of the active store.
func (fs *FailoverStore) Ping(ctx context.Context) error {
	return fs.current().Ping(ctx)
}

func (fs *FailoverStore) Close() error {
	var err error
	fs.closeOnce.Do(func() {
		fs.mu.Lock()
		if fs.probing {
			close(fs.probeStop)
			done := fs.probeDone
			fs.probing = false
			fs.mu.Unlock()
			<-done
		} else {
			fs.mu.Unlock()
		}

		err = errors.Join(fs.primary.Close(), fs.fallback.Close())
	})
	return err
}
