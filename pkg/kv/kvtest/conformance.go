// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polyscreen/polyscreen-backend/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"SetGet", testSetGet},
		{"GetNonExistent", testGetNonExistent},
		{"Overwrite", testOverwrite},
		{"Del", testDel},
		{"Exists", testExists},
		{"SetWithTTL", testSetWithTTL},
		{"Expire", testExpire},
		{"TTL", testTTL},
		{"IncrBy", testIncrBy},
		{"IncrByInvalidValue", testIncrByInvalidValue},
		{"HealthCheck", testHealthCheck},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	value := []byte(`{"success":true,"count":0,"data":[]}`)

	if err := store.Set(ctx, "test:snapshot", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "test:snapshot")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("Expected %q, got %q", value, got)
	}
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), "test:missing")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testOverwrite(t *testing.T, store kv.Store) {
	ctx := context.Background()
	store.Set(ctx, "test:overwrite", []byte("v1"), time.Minute)
	store.Set(ctx, "test:overwrite", []byte("v2"))

	got, err := store.Get(ctx, "test:overwrite")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("Expected v2, got %q", got)
	}

	// Overwriting without a TTL clears the previous expiry.
	ttl, err := store.TTL(ctx, "test:overwrite")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected -1 after overwrite, got %v", ttl)
	}
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	store.Set(ctx, "test:del1", []byte("a"))
	store.Set(ctx, "test:del2", []byte("b"))

	n, err := store.Del(ctx, "test:del1", "test:del2", "test:del3")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 deleted keys, got %d", n)
	}

	if _, err := store.Get(ctx, "test:del1"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected deleted key to be gone, got %v", err)
	}
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()

	n, err := store.Exists(ctx, "test:exists")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Expected 0 for missing key, got %d", n)
	}

	store.Set(ctx, "test:exists", []byte("x"))
	n, err = store.Exists(ctx, "test:exists", "test:exists-missing")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 for existing key, got %d", n)
	}
}

func testSetWithTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()

	if err := store.Set(ctx, "test:ttl", []byte("expires"), 100*time.Millisecond); err != nil {
		t.Fatalf("Set with TTL failed: %v", err)
	}
	if _, err := store.Get(ctx, "test:ttl"); err != nil {
		t.Fatalf("Expected key to exist initially, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := store.Get(ctx, "test:ttl"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testExpire(t *testing.T, store kv.Store) {
	ctx := context.Background()
	store.Set(ctx, "test:expire", []byte("x"))

	ok, err := store.Expire(ctx, "test:expire", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if !ok {
		t.Fatalf("Expected Expire to return true for existing key")
	}

	ok, err = store.Expire(ctx, "test:expire-missing", time.Second)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if ok {
		t.Fatalf("Expected Expire to return false for missing key")
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := store.Get(ctx, "test:expire"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()

	if _, err := store.TTL(ctx, "test:ttl-check"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent key, got %v", err)
	}

	store.Set(ctx, "test:ttl-check", []byte("x"), 500*time.Millisecond)
	ttl, err := store.TTL(ctx, "test:ttl-check")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 500*time.Millisecond {
		t.Fatalf("Expected TTL between 0 and 500ms, got %v", ttl)
	}
}

func testIncrBy(t *testing.T, store kv.Store) {
	ctx := context.Background()

	v, err := store.IncrBy(ctx, "test:counter", 1)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if v != 1 {
		t.Fatalf("Expected 1, got %d", v)
	}

	v, err = store.IncrBy(ctx, "test:counter", 5)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if v != 6 {
		t.Fatalf("Expected 6, got %d", v)
	}

	got, err := store.Get(ctx, "test:counter")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "6" {
		t.Fatalf("Expected counter stored as \"6\", got %q", got)
	}
}

func testIncrByInvalidValue(t *testing.T, store kv.Store) {
	ctx := context.Background()
	store.Set(ctx, "test:not-a-number", []byte("abc"))

	if _, err := store.IncrBy(ctx, "test:not-a-number", 1); err == nil {
		t.Fatalf("Expected IncrBy to fail on a non-integer value")
	}
}

func testHealthCheck(t *testing.T, store kv.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
