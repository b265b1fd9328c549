package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/polyscreen/polyscreen-backend/pkg/kv"
)

var errNotInteger = errors.New("value is not an integer or out of range")

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	closed  bool

	janitorStop chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

// New creates a new in-memory store. A positive janitorInterval starts a
// background goroutine that evicts expired keys; expired keys are never
// returned either way.
func New(janitorInterval time.Duration) *Store {
	s := &Store{
		entries:     make(map[string]entry),
		janitorStop: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}

	if janitorInterval > 0 {
		go s.janitor(janitorInterval)
	} else {
		close(s.janitorDone)
	}
	return s
}

func (s *Store) janitor(interval time.Duration) {
	defer close(s.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
}

// lookupLocked returns the live entry for key, evicting it if expired.
func (s *Store) lookupLocked(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	e := entry{value: stored}
	if len(ttl) > 0 && ttl[0] > 0 {
		e.expiresAt = time.Now().Add(ttl[0])
	}
	s.entries[key] = e
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookupLocked(key)
	if !ok {
		return nil, kv.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, key := range keys {
		if _, ok := s.lookupLocked(key); ok {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, key := range keys {
		if _, ok := s.lookupLocked(key); ok {
			n++
		}
	}
	return n, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookupLocked(key)
	if !ok {
		return false, nil
	}
	if ttl <= 0 {
		delete(s.entries, key)
		return true, nil
	}
	e.expiresAt = time.Now().Add(ttl)
	s.entries[key] = e
	return true, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookupLocked(key)
	if !ok {
		return 0, kv.ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return time.Until(e.expiresAt), nil
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	e, ok := s.lookupLocked(key)
	if ok {
		v, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, errNotInteger
		}
		current = v
	}

	current += n
	e.value = []byte(strconv.FormatInt(current, 10))
	s.entries[key] = e
	return current, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrBackendUnavailable
	}
	return nil
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.janitorStop)
		<-s.janitorDone

		s.mu.Lock()
		s.closed = true
		s.entries = make(map[string]entry)
		s.mu.Unlock()
	})
	return nil
}
