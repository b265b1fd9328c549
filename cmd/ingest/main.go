package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/polyscreen/polyscreen-backend/internal/config"
	"github.com/polyscreen/polyscreen-backend/internal/db"
	"github.com/polyscreen/polyscreen-backend/internal/gamma"
	"github.com/polyscreen/polyscreen-backend/internal/log"
	"github.com/polyscreen/polyscreen-backend/internal/metrics"
	"github.com/polyscreen/polyscreen-backend/internal/models"
	"github.com/polyscreen/polyscreen-backend/internal/repository"
)

type ingester struct {
	source   *gamma.Client
	repo     *repository.Repository
	pageSize int
	maxPages int
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
}

// run pulls every active event from gamma and upserts it with its markets.
func (in *ingester) run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := in.logger.With("run_id", runID)
	start := time.Now()

	raw, err := in.source.ActiveEvents(ctx, in.pageSize, in.maxPages)
	if err != nil {
		return fmt.Errorf("fetch gamma events: %w", err)
	}

	fetched := time.Now().UTC()
	events := make([]models.Event, 0, len(raw))
	markets := 0
	for _, r := range raw {
		e, skipped := r.ToModel(fetched)
		if len(skipped) > 0 {
			logger.Warnw("Skipped markets with unreadable prices", "event_id", e.EventID, "markets", skipped)
		}
		if err := e.Validate(); err != nil {
			logger.Warnw("Skipped invalid event", "event_id", e.EventID, "error", err)
			continue
		}
		events = append(events, e)
		markets += len(e.Markets)
	}

	if err := in.repo.UpsertEvents(ctx, events); err != nil {
		return fmt.Errorf("upsert events: %w", err)
	}

	in.metrics.RecordIngested(ctx, "event", len(events))
	in.metrics.RecordIngested(ctx, "market", markets)
	logger.Infow("Ingest run finished",
		"events", len(events),
		"markets", markets,
		"duration", time.Since(start),
	)
	return nil
}

func metricsRouter(h http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Heartbeat("/ping"))
	r.Method(http.MethodGet, "/metrics", h)
	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		logger.Fatalw("Failed to open database", "error", err)
	}
	defer conn.Close()

	if err := db.Migrate(conn, cfg.Database.Driver, logger); err != nil {
		logger.Fatalw("Failed to migrate database", "error", err)
	}

	m, metricsHandler, err := metrics.Setup("polyscreen-ingest")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	in := &ingester{
		source:   gamma.NewClient(cfg.Gamma.BaseURL, cfg.Gamma.RPS, cfg.Gamma.Timeout, logger),
		repo:     repository.NewRepository(conn, cfg.Database.Driver, logger, m),
		pageSize: cfg.Ingest.PageSize,
		maxPages: cfg.Ingest.MaxPages,
		logger:   logger,
		metrics:  m,
	}

	logger.Infow("Starting ingest",
		"gamma", cfg.Gamma.BaseURL,
		"interval", cfg.Ingest.Interval,
		"page_size", cfg.Ingest.PageSize,
		"max_pages", cfg.Ingest.MaxPages,
	)

	if cfg.Ingest.Interval == 0 {
		if err := in.run(ctx); err != nil {
			logger.Fatalw("Ingest failed", "error", err)
		}
		return
	}

	if cfg.Ingest.MetricsAddr != "" {
		server := &http.Server{
			Addr:              cfg.Ingest.MetricsAddr,
			Handler:           metricsRouter(metricsHandler),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Infow("Serving ingest metrics", "addr", cfg.Ingest.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("Metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	ticker := time.NewTicker(cfg.Ingest.Interval)
	defer ticker.Stop()
	for {
		if err := in.run(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Errorw("Ingest run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Infow("Ingest stopped")
			return
		case <-ticker.C:
		}
	}
	logger.Infow("Ingest stopped")
}
