// Package markets serves the event and market collections: it loads them from
// the datastore through the cache and runs them through the view engine.
package markets

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/polyscreen/polyscreen-backend/internal/models"
	"github.com/polyscreen/polyscreen-backend/internal/store"
	"github.com/polyscreen/polyscreen-backend/internal/views"
)

// Categories is the canonical category list offered to clients.
var Categories = []string{
	"Politics",
	"Sports",
	"Finance",
	"Crypto",
	"Geopolitics",
	"Earnings",
	"Tech",
	"Culture",
	"World",
	"Economy",
	"Elections",
	"Mentions",
}

// Datastore is the read side of the repository.
type Datastore interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	ListMarkets(ctx context.Context) ([]models.Market, error)
	Ping(ctx context.Context) error
}

// loadTimeout bounds one shared datastore load.
const loadTimeout = 30 * time.Second

type Options struct {
	// CacheTTL bounds how long a loaded collection is served from cache.
	// Zero disables caching.
	CacheTTL time.Duration
	// PageSize applies when a page is requested without a size.
	PageSize int
	Now      func() time.Time
}

type Service struct {
	repo     Datastore
	cache    *store.Cache
	ttl      time.Duration
	pageSize int
	now      func() time.Time
	logger   *zap.SugaredLogger

	loads singleflight.Group
}

func NewService(repo Datastore, cache *store.Cache, opts Options, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = views.DefaultPageSize
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		ttl:      opts.CacheTTL,
		pageSize: pageSize,
		now:      now,
		logger:   logger,
	}
}

// Listing is a filtered and sorted collection, optionally windowed.
type Listing[T any] struct {
	Items []T
	// Total counts the filtered collection, not the window.
	Total int
	// Window is nil unless a page was requested.
	Window *Window
}

type Window struct {
	Page       int
	PageSize   int
	TotalPages int
}

// Events returns the events matching q.
func (s *Service) Events(ctx context.Context, q views.Query) (Listing[models.Event], error) {
	events, err := s.AllEvents(ctx)
	if err != nil {
		return Listing[models.Event]{}, err
	}

	filtered := views.FilterEvents(events, q.Criteria, s.now())
	sorted := views.SortEvents(filtered, q.Sort)
	return listing(sorted, q, s.pageSize), nil
}

// Markets returns the markets matching q.
func (s *Service) Markets(ctx context.Context, q views.Query) (Listing[models.Market], error) {
	markets, err := s.AllMarkets(ctx)
	if err != nil {
		return Listing[models.Market]{}, err
	}

	filtered := views.FilterMarkets(markets, q.Criteria, s.now())
	sorted := views.SortMarkets(filtered, q.Sort)
	return listing(sorted, q, s.pageSize), nil
}

func listing[T any](items []T, q views.Query, defaultSize int) Listing[T] {
	if !q.Paginated() {
		return Listing[T]{Items: items, Total: len(items)}
	}

	size := q.PageSize
	if size == 0 {
		size = defaultSize
	}
	page := views.Paginate(items, size, q.Page)
	return Listing[T]{
		Items: page.Items,
		Total: page.TotalItems,
		Window: &Window{
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalPages: page.TotalPages,
		},
	}
}

// AllEvents returns the full event collection ordered by volume, served
// from cache when possible. Concurrent misses share one datastore load.
func (s *Service) AllEvents(ctx context.Context) ([]models.Event, error) {
	return load(ctx, s, store.KeyEvents, s.repo.ListEvents)
}

// AllMarkets returns the full market collection ordered by volume.
func (s *Service) AllMarkets(ctx context.Context) ([]models.Market, error) {
	return load(ctx, s, store.KeyMarkets, s.repo.ListMarkets)
}

func load[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	if s.cache != nil && s.ttl > 0 {
		var cached []T
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, store.ErrCacheMiss) {
			s.logger.Warnw("Cache read failed; loading from datastore", "key", key, "error", err)
		}
	}

	// The shared load outlives any single caller; each caller stops waiting
	// when its own context ends.
	ch := s.loads.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		items, err := fetch(loadCtx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && s.ttl > 0 {
			if err := s.cache.Set(loadCtx, key, items, s.ttl); err != nil {
				s.logger.Warnw("Cache write failed", "key", key, "error", err)
			}
		}
		return items, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load %s: %w", key, res.Err)
		}
		return res.Val.([]T), nil
	}
}

// Reload drops the cached collections and loads them again. It returns the
// fresh events.
func (s *Service) Reload(ctx context.Context) ([]models.Event, error) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, store.KeyEvents, store.KeyMarkets, store.KeyCategories); err != nil {
			s.logger.Warnw("Cache invalidation failed", "error", err)
		}
	}
	s.loads.Forget(store.KeyEvents)
	s.loads.Forget(store.KeyMarkets)

	if _, err := s.AllMarkets(ctx); err != nil {
		return nil, err
	}
	return s.AllEvents(ctx)
}

// Dashboard computes the ranked views over the full event collection.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	events, err := s.AllEvents(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return NewDashboard(events, s.now()), nil
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CategoryCounts reports how many events carry each canonical category,
// followed by any other tags present in the data, ordered by name. The
// result is cached like the collections it is computed from.
func (s *Service) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	if s.cache != nil && s.ttl > 0 {
		var cached []CategoryCount
		if err := s.cache.Get(ctx, store.KeyCategories, &cached); err == nil {
			return cached, nil
		}
	}

	events, err := s.AllEvents(ctx)
	if err != nil {
		return nil, err
	}

	counts := countCategories(events)
	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, store.KeyCategories, counts, s.ttl); err != nil {
			s.logger.Warnw("Cache write failed", "key", store.KeyCategories, "error", err)
		}
	}
	return counts, nil
}

func countCategories(events []models.Event) []CategoryCount {
	counts := make(map[string]int)
	names := make(map[string]string)
	for _, c := range Categories {
		k := strings.ToLower(c)
		counts[k] = 0
		names[k] = c
	}
	for _, e := range events {
		seen := make(map[string]bool, len(e.Categories))
		for _, c := range e.Categories {
			k := strings.ToLower(c)
			if seen[k] {
				continue
			}
			seen[k] = true
			counts[k]++
			if _, ok := names[k]; !ok {
				names[k] = c
			}
		}
	}

	out := make([]CategoryCount, 0, len(Categories))
	for _, c := range Categories {
		k := strings.ToLower(c)
		out = append(out, CategoryCount{Name: c, Count: counts[k]})
		delete(counts, k)
	}
	extra := make([]CategoryCount, 0, len(counts))
	for k, n := range counts {
		extra = append(extra, CategoryCount{Name: names[k], Count: n})
	}
	slices.SortFunc(extra, func(a, b CategoryCount) int {
		return strings.Compare(a.Name, b.Name)
	})
	return append(out, extra...)
}

// Ready checks the datastore and the cache.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("datastore: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}
