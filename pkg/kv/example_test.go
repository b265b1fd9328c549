package kv_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/polyscreen/polyscreen-backend/pkg/kv"

	_ "github.com/polyscreen/polyscreen-backend/pkg/kv/memory"
	_ "github.com/polyscreen/polyscreen-backend/pkg/kv/redis"
)

func ExampleNewStoreFromConfig_memory() {
	store, err := kv.NewStoreFromConfig(kv.Config{
		Backend:         kv.BackendMemory,
		JanitorInterval: 30 * time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "polyscreen:version", []byte("41")); err != nil {
		log.Fatal(err)
	}

	version, err := store.IncrBy(ctx, "polyscreen:version", 1)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(version)
	// Output: 42
}

func ExampleNewStoreFromConfig_redisUnreachable() {
	// Nothing listens on port 1, so the store degrades to memory.
	store, err := kv.NewStoreFromConfig(kv.Config{
		Backend:             kv.BackendRedis,
		RedisURL:            "127.0.0.1:1",
		FailoverEnabled:     true,
		StartupProbeTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fs, ok := store.(*kv.FailoverStore)
	fmt.Println(ok, fs.UsingFallback())
	// Output: true true
}
