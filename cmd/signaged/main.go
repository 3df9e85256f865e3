// Command signaged is the signage player agent.
//
// It pairs the device with an operator account, keeps the assigned playlist
// synchronized from the control plane, mirrors it into a local cache, and
// rotates the display through it. The agent is offline-first: it starts
// playing the cached playlist before touching the network.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/linkitmedia/signage-core/internal/agent"
	"github.com/linkitmedia/signage-core/internal/infrastructure/config"
	"github.com/linkitmedia/signage-core/internal/infrastructure/database"
	"github.com/linkitmedia/signage-core/internal/infrastructure/logging"
	"github.com/linkitmedia/signage-core/internal/rotation"
	_ "github.com/linkitmedia/signage-core/migrations" // Embedded schema migrations
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("signaged %s (%s)\n", version, commit)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "signaged: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting signaged",
		"version", version,
		"commit", commit,
		"config", configPath,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("database ready", "path", db.Path())

	renderer := rotation.NewLogRenderer(logger.With("component", "renderer"))

	a := agent.New(cfg, logger, db, renderer)
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}
	logger.Info("agent running")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	a.Stop()
	logger.Info("shutdown complete")
	return nil
}
