package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logpkg "firewatch/common/logger"
	"firewatch/internal/config"
	"firewatch/internal/service"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var envFile, buildingFile, addr string
	flags := pflag.NewFlagSet("firewatch", pflag.ExitOnError)
	flags.StringVar(&envFile, "env-file", "", "load KEY=VALUE settings from this file before reading the environment")
	flags.StringVar(&buildingFile, "building", "", "building model (YAML or JSON); overrides BUILDING_FILE")
	flags.StringVar(&addr, "addr", "", "HTTP listen address; overrides HTTP_ADDR")
	_ = flags.Parse(os.Args[1:])

	// 1. Load configuration
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			panic(err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if buildingFile != "" {
		cfg.BuildingFile = buildingFile
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	// 2. Initialize logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting firewatch",
		zap.String("version", cfg.ServerVersion),
		zap.String("addr", cfg.HTTP.Addr),
		zap.Bool("redis", cfg.RedisEnabled),
		zap.Bool("mqtt", cfg.MQTTEnabled),
		zap.Bool("database", cfg.DatabaseEnabled),
	)

	// 3. Build the service
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := service.NewFirewatchService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create firewatch service", zap.Error(err))
	}

	// 4. Start in the background
	serviceErrChan := make(chan error, 1)
	go func() {
		if err := svc.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	// 5. Wait for a signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serviceErrChan:
		logger.Error("Service error", zap.Error(err))
	}

	// 6. Graceful shutdown
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Firewatch stopped")
}
