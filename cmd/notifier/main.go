package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tradeops/arbiter/configs"
	"github.com/tradeops/arbiter/internal/logging"
	"github.com/tradeops/arbiter/internal/notifier"
)

func main() {
	cfg := configs.AppLoad()
	logger := logging.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	n, err := notifier.New(cfg.Kafka.Broker, cfg.Kafka.GroupID, logger)
	if err != nil {
		logger.Fatalf("Failed to create notifier: %v", err)
	}

	if err := n.Start(ctx); err != nil {
		logger.Fatalf("Notifier failed: %v", err)
	}
}
