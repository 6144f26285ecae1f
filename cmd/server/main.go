package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/abbaskhalil042/co-draw/internal/logging"
	"github.com/abbaskhalil042/co-draw/internal/server"
	"github.com/abbaskhalil042/co-draw/internal/store"
)

func main() {
	logger := logging.New()
	defer func() { _ = logger.Sync() }()

	cfg, err := server.LoadConfig()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	var st store.MessageStore
	if cfg.DatabaseURL != "" {
		pool, err := store.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		st = store.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store, messages will not survive restart")
		st = store.NewMemoryStore()
	}

	hub := server.NewHub(cfg, logger, st)
	go hub.Run()

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, logger)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
		return
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("hub shutdown incomplete", zap.Error(err))
	}
}
