package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-inventory/internal/config"
	kafkax "github.com/ariefcatur/go-order-inventory/internal/kafka"
	"github.com/ariefcatur/go-order-inventory/internal/logger"
	"github.com/joho/godotenv"
)

// audit tails the order events topic and logs each event.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, cfg.KafkaTopic, cfg.AuditWorkers, log)
	log.Infow("audit consumer started", "group", cfg.AuditGroup, "topic", cfg.KafkaTopic, "workers", cfg.AuditWorkers)
	if err := cons.Start(ctx, kafkax.AuditHandler(log)); err != nil {
		log.Errorw("consumer exit", "err", err)
		os.Exit(1)
	}
	log.Infow("audit consumer stopped")
}
