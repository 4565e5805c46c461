package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	osrm "github.com/biddyweb/go-osrm"
	"github.com/biddyweb/go-osrm/engine"
	"github.com/biddyweb/go-osrm/engine/remote"
	"github.com/biddyweb/go-osrm/internal/api"
	"github.com/biddyweb/go-osrm/internal/config"
	"github.com/biddyweb/go-osrm/internal/observability"
	"github.com/biddyweb/go-osrm/internal/store"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("osrmd: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"engine", cfg.Engine,
		"queue_size", cfg.QueueSize,
	)

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "osrmd",
		Endpoint:    cfg.TracingEndpoint,
		SampleRatio: cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open query journal: %v", err)
	}
	defer db.Close()

	reg := engine.NewRegistry()
	reg.Register("remote", "osrm-routed over HTTP at "+cfg.RemoteURL, remote.NewOpener(cfg.RemoteURL, nil))

	open, err := reg.Resolve(cfg.Engine)
	if err != nil {
		log.Fatalf("failed to resolve engine %q: %v", cfg.Engine, err)
	}

	o, err := osrm.NewWith(osrm.Config{
		BasePath:        cfg.BasePath,
		UseSharedMemory: cfg.BasePath == "",
		Opener:          open,
		Logger:          logger,
		QueueSize:       cfg.QueueSize,
	})
	if err != nil {
		log.Fatalf("failed to open engine: %v", err)
	}

	srv := api.NewServer(cfg.ListenAddr, db, reg, o, logger, cfg.ShutdownTimeout)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	logger.Info("osrmd: draining in-flight queries")
	if err := o.Close(); err != nil {
		logger.Error("osrmd: engine close", "error", err)
	}

	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)
	logger.Info("osrmd: shutdown complete")
}
