package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-inventory/internal/config"
	"github.com/ariefcatur/go-order-inventory/internal/httpx"
	"github.com/ariefcatur/go-order-inventory/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-inventory/internal/kafka"
	"github.com/ariefcatur/go-order-inventory/internal/logger"
	"github.com/ariefcatur/go-order-inventory/internal/orders"
	"github.com/ariefcatur/go-order-inventory/internal/postgres"
	"github.com/ariefcatur/go-order-inventory/internal/rabbitmq"
	"github.com/ariefcatur/go-order-inventory/internal/redisx"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Errorw("order-api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var repo orders.Repository = &orders.PostgresRepo{DB: db}

	// Redis cache (optional)
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer rdb.Close()
		repo = &orders.CachedRepo{Repo: repo, Redis: rdb, TTL: redisx.TTLOrderCache, Log: log}
	}

	// Inventory
	var stock orders.StockAdjuster
	if cfg.InventoryEnabled {
		products := inventory.NewHTTPProductClient(cfg.ProductAPIURL, cfg.ProductTimeout)
		stock = inventory.NewWorkflow(products, log)
	} else {
		log.Warnw("inventory coordination disabled")
	}

	// Events
	events, closeEvents, err := newPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeEvents()

	svc := orders.NewService(repo, stock, events, log, cfg.ServiceName)

	router := httpx.NewRouter(log)
	oh := &httpx.OrdersHandler{Service: svc, Log: log, Timeout: 10 * time.Second}
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}
	log.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newPublisher(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (orders.EventPublisher, func(), error) {
	switch cfg.EventsBroker {
	case config.BrokerRabbitMQ:
		p, err := rabbitmq.Dial(ctx, cfg.RabbitMQURL, cfg.RabbitMQQueue, log)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq: %w", err)
		}
		log.Infow("publishing order events", "broker", "rabbitmq", "queue", cfg.RabbitMQQueue)
		return p, closer(p, log), nil
	case config.BrokerKafka:
		prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024, log)
		prod.Start()
		log.Infow("publishing order events", "broker", "kafka", "topic", cfg.KafkaTopic)
		return kafkax.OrderEvents{Producer: prod}, prod.Close, nil
	case config.BrokerNone:
		return orders.NopPublisher{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown EVENTS_BROKER %q", cfg.EventsBroker)
	}
}

func closer(c io.Closer, log *zap.SugaredLogger) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Warnw("close failed", "err", err)
		}
	}
}
