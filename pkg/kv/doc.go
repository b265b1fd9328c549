// Package kv provides a Redis-like key-value store abstraction with in-memory
// and Redis-backed implementations.
//
// polyscreen caches serialized dataset snapshots and a refresh counter in it.
// Backends register themselves on import:
//
//	import (
//		"github.com/polyscreen/polyscreen-backend/pkg/kv"
//		_ "github.com/polyscreen/polyscreen-backend/pkg/kv/memory"
//		_ "github.com/polyscreen/polyscreen-backend/pkg/kv/redis"
//	)
//
//	store, err := kv.NewStoreFromConfig(kv.Config{
//		Backend:         kv.BackendRedis,
//		RedisURL:        "localhost:6379",
//		FailoverEnabled: true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Set(ctx, "polyscreen:events", payload, 30*time.Second)
//
// With failover enabled a Redis outage switches traffic to the in-memory
// store, and a background probe switches back once Redis answers again.
package kv
