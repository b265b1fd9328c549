package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/polyscreen/polyscreen-backend/pkg/kv"
	"github.com/polyscreen/polyscreen-backend/pkg/kv/kvtest"
)

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	factory := func(t *testing.T) kv.Store {
		store, err := New(redisURL)
		if err != nil {
			t.Fatalf("Failed to create Redis store: %v", err)
		}

		ctx := context.Background()
		keys, _ := store.client.Keys(ctx, "test:*").Result()
		store.Del(ctx, keys...)
		return store
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestUnreachableRedisIsUnavailable(t *testing.T) {
	// Port 1 on loopback refuses connections.
	store, err := New("127.0.0.1:1")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer store.Close()

	err = store.Ping(context.Background())
	if !errors.Is(err, kv.ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable, got %v", err)
	}
}

func TestOptions(t *testing.T) {
	opt, err := Options("redis://:secret@cache.internal:6380/2")
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.DB != 2 || opt.Password != "secret" {
		t.Fatalf("Unexpected options: %+v", opt)
	}

	opt, err = Options("localhost:6379")
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opt.Addr != "localhost:6379" {
		t.Fatalf("Unexpected address: %s", opt.Addr)
	}

	if _, err := Options(""); err == nil {
		t.Fatalf("Expected error for empty address")
	}
}
