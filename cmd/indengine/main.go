package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"indstream/internal/indengine"
	"indstream/internal/indicator"
	"indstream/internal/logger"
)

func main() {
	logger.Init("indengine", slog.LevelInfo)

	cfg, err := indengine.LoadConfig()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.Init("indengine", cfg.LogLevel)
	log.Info("configuration loaded",
		"source", cfg.BarSource,
		"indicators", indicator.FormatSpecs(cfg.Specs),
		"checkpoint_interval", cfg.CheckpointInterval,
		"consumer", cfg.ConsumerName,
	)

	svc, err := indengine.New(cfg)
	if err != nil {
		log.Error("init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}
