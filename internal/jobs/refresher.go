// Package jobs holds background workers of the API server.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polyscreen/polyscreen-backend/internal/markets"
	"github.com/polyscreen/polyscreen-backend/internal/models"
	"github.com/polyscreen/polyscreen-backend/internal/store"
)

// Reloader reloads the dataset bypassing any cached copy.
type Reloader interface {
	Reload(ctx context.Context) ([]models.Event, error)
}

type RefresherConfig struct {
	Interval time.Duration
	Now      func() time.Time
}

// Refresher periodically reloads the dataset, bumps the dataset version and
// publishes a fresh dashboard snapshot. A failed refresh keeps the previous
// snapshot and is retried on the next tick.
type Refresher struct {
	source Reloader
	cache  *store.Cache
	logger *zap.SugaredLogger
	config RefresherConfig

	mu        sync.Mutex
	cancelCtx context.CancelFunc
	lastErr   error
	lastRun   time.Time
}

func NewRefresher(source Reloader, cache *store.Cache, logger *zap.SugaredLogger, config RefresherConfig) *Refresher {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Refresher{
		source: source,
		cache:  cache,
		logger: logger,
		config: config,
	}
}

// Start refreshes once and then on every interval until ctx is done or Stop
// is called.
func (r *Refresher) Start(ctx context.Context) error {
	if r.config.Interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", r.config.Interval)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancelCtx = cancel
	r.mu.Unlock()

	r.logger.Infow("Starting dataset refresher", "interval", r.config.Interval)

	r.tick(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("Dataset refresher stopping due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelCtx != nil {
		r.cancelCtx()
	}
}

func (r *Refresher) tick(ctx context.Context) {
	start := time.Now()
	d, err := r.RefreshOnce(ctx)

	r.mu.Lock()
	r.lastErr = err
	r.lastRun = r.config.Now()
	r.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			r.logger.Errorw("Dataset refresh failed; keeping previous snapshot", "error", err)
		}
		return
	}
	r.logger.Debugw("Dataset refreshed",
		"version", d.Version,
		"duration", time.Since(start),
	)
}

// RefreshOnce reloads the dataset and publishes the resulting dashboard on
// store.ChannelDashboard.
func (r *Refresher) RefreshOnce(ctx context.Context) (markets.Dashboard, error) {
	events, err := r.source.Reload(ctx)
	if err != nil {
		return markets.Dashboard{}, fmt.Errorf("reload dataset: %w", err)
	}

	version, err := r.cache.BumpVersion(ctx)
	if err != nil {
		return markets.Dashboard{}, err
	}

	d := markets.NewDashboard(events, r.config.Now())
	d.Version = version

	if err := r.cache.Set(ctx, store.KeyDashboard, d, 0); err != nil {
		return markets.Dashboard{}, err
	}
	if err := r.cache.Publish(ctx, store.ChannelDashboard, d); err != nil {
		return markets.Dashboard{}, err
	}
	return d, nil
}

// Status reports the outcome of the most recent refresh.
func (r *Refresher) Status() (lastRun time.Time, lastErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastErr
}
