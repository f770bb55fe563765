package main

import (
	"Go2DAQSpectra/internal/api"
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/engine/manager"
	"Go2DAQSpectra/internal/logging"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// drainTimeout bounds how long shutdown waits for a running session to be finalized.
const drainTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", *configPath))

	// 2. Wire the session controller
	mgr, err := manager.NewManager(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create manager", zap.Error(err))
	}

	// 3. Start the control API and the health endpoint
	server := api.NewServer(cfg.API.ListenAddr, mgr.Handler().Router(), logger)
	server.Start()
	if err := mgr.Health.Serve(cfg.GRPC.ListenAddr); err != nil {
		logger.Fatal("failed to start health server", zap.Error(err))
	}

	// 4. Wait for a shutdown signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, finishing measurement...")
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("API server forced to shutdown", zap.Error(err))
	}
	if err := mgr.Stop(ctx); err != nil {
		logger.Error("manager stopped with errors", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
