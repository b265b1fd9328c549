package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/polyscreen/polyscreen-backend/internal/config"
	"github.com/polyscreen/polyscreen-backend/internal/db"
	"github.com/polyscreen/polyscreen-backend/internal/log"
)

const usage = `Usage: migrate COMMAND

Commands:
  up       apply all pending migrations
  down     roll back the latest migration
  status   print migration status
  version  print the current schema version
  reset    roll back every migration`

func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, db.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		logger.Fatalw("Failed to connect to database", "error", err)
	}
	defer conn.Close()

	command := args[0]
	if err := db.RunMigrations(conn, cfg.Database.Driver, command, logger); err != nil {
		logger.Fatalw("Migration failed", "command", command, "error", err)
	}
	logger.Infow("Migration finished", "command", command, "driver", cfg.Database.Driver)
}
