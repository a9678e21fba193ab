package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-image-pipeline/internal/api"
	"go-image-pipeline/internal/api/handler"
	"go-image-pipeline/internal/config"
	"go-image-pipeline/internal/pipeline"
	"go-image-pipeline/internal/storage"
	"go-image-pipeline/internal/store"
	"go-image-pipeline/pkg/router"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "listen address, overrides the config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	logger := cfg.Logger(os.Stderr)

	// Init DB
	if err := store.InitDB(cfg.DBPath); err != nil {
		logger.Error("open ledger", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	handler.Configure(pipeline.Deps{
		Storage: storage.NewOS("."),
		Logger:  logger,
	}, cfg.BatchSpec)

	// Create router
	r := router.New()

	// Register API routes
	api.RegisterRoutes(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server
	if err := r.Start(ctx, cfg.Addr); err != nil {
		logger.Error("server stopped", "error", err)
	}

	handler.CancelAll()
	handler.Wait()
}
