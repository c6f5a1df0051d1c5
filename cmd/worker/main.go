// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-launch-api/internal/capture"
	"github.com/unclebandit/campaign-launch-api/internal/config"
	"github.com/unclebandit/campaign-launch-api/internal/logger"
	"github.com/unclebandit/campaign-launch-api/internal/queue"
)

// The worker drains error events published by the API and forwards them to
// Sentry.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required")
	}

	log, err := logger.New(cfg.Options())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	sentrySink, err := capture.NewSentry(capture.SentryOptions{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     cfg.ServiceName + "@" + cfg.ServiceVersion,
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	defer sentrySink.Flush(2 * time.Second)
	if cfg.SentryDSN == "" {
		log.Warn("SENTRY_DSN not set, events are consumed and dropped")
	}

	// Connect to RabbitMQ
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	deliveries, err := queue.Consume(ch, cfg.ErrorEventQueue)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker running, waiting for error events", zap.String("queue", cfg.ErrorEventQueue))
	queue.NewWorker(deliveries, capture.Forwarder(sentrySink), log.Named("worker")).Start(ctx)
	return nil
}
