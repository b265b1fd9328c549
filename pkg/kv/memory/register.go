package memory

import (
	"time"

	"github.com/polyscreen/polyscreen-backend/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendMemory, func(cfg kv.Config) (kv.Store, error) {
		interval := cfg.JanitorInterval
		if interval == 0 {
			interval = 30 * time.Second
		}
		return New(interval), nil
	})
}

// NewStore creates a new in-memory store with default janitor interval
func NewStore() kv.Store {
	return New(30 * time.Second)
}
