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

	"github.com/polyscreen/polyscreen-backend/internal/api"
	"github.com/polyscreen/polyscreen-backend/internal/config"
	"github.com/polyscreen/polyscreen-backend/internal/db"
	"github.com/polyscreen/polyscreen-backend/internal/jobs"
	"github.com/polyscreen/polyscreen-backend/internal/log"
	"github.com/polyscreen/polyscreen-backend/internal/markets"
	"github.com/polyscreen/polyscreen-backend/internal/metrics"
	"github.com/polyscreen/polyscreen-backend/internal/repository"
	"github.com/polyscreen/polyscreen-backend/internal/store"
	"github.com/polyscreen/polyscreen-backend/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting polyscreen API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"db_driver", cfg.Database.Driver,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("polyscreen-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, db.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: 20,
		MaxIdleConns: 5,
	})
	if err != nil {
		logger.Fatalw("Failed to open database", "error", err)
	}
	defer conn.Close()

	if err := db.Migrate(conn, cfg.Database.Driver, logger); err != nil {
		logger.Fatalw("Failed to migrate database", "error", err)
	}
	logger.Infow("Database initialized")

	// Redis when reachable, in-memory otherwise
	cache, err := store.NewCache(cfg.Cache.RedisAddr, logger, metricsObj)
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	defer cache.Close()
	logger.Infow("Cache ready", "in_memory", cache.IsInMemoryMode())

	repo := repository.NewRepository(conn, cfg.Database.Driver, logger, metricsObj)
	marketsSvc := markets.NewService(repo, cache, markets.Options{
		CacheTTL: cfg.Cache.TTL,
		PageSize: cfg.Views.PageSize,
	}, logger)

	// Background services share one lifetime
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	wsHub := ws.NewHub(cache, cfg.Security.CORSAllowedOrigins, logger, metricsObj)
	go wsHub.Run(bgCtx)

	// Setup API handler and middleware
	handler := api.NewHandler(marketsSvc, http.HandlerFunc(wsHub.HandleWebSocket), logger)

	if cfg.Cache.RefreshInterval > 0 {
		refresher := jobs.NewRefresher(marketsSvc, cache, logger, jobs.RefresherConfig{
			Interval: cfg.Cache.RefreshInterval,
		})
		handler.WithRefreshStatus(refresher)
		go func() {
			logger.Infow("Starting dataset refresher", "interval", cfg.Cache.RefreshInterval)
			if err := refresher.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorw("Dataset refresher error", "error", err)
			}
		}()
	} else {
		logger.Infow("Dataset refresher disabled")
	}

	middleware := api.NewMiddleware(logger, metricsObj)
	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM, metricsHandler)

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// WriteTimeout stays zero: websocket connections outlive any fixed
	// deadline. JSON routes are bounded by the timeout middleware.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		bgCancel()

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
