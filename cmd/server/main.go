// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-launch-api/internal/capture"
	"github.com/unclebandit/campaign-launch-api/internal/config"
	"github.com/unclebandit/campaign-launch-api/internal/db"
	"github.com/unclebandit/campaign-launch-api/internal/handler"
	"github.com/unclebandit/campaign-launch-api/internal/logger"
	"github.com/unclebandit/campaign-launch-api/internal/queue"
	"github.com/unclebandit/campaign-launch-api/internal/repository"
	"github.com/unclebandit/campaign-launch-api/internal/service"
	"github.com/unclebandit/campaign-launch-api/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts := cfg.Options()

	log, err := logger.New(opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
		Enabled:        cfg.OTelEnabled,
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	conn, dialect, err := db.Open(ctx, db.Config{
		Driver:       cfg.DatabaseDriver,
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("database ready", zap.String("driver", cfg.DatabaseDriver))

	// Capture sinks are only built when enabled; the reporter falls back to
	// a no-op sink otherwise.
	var sinks capture.Multi
	var sentrySink *capture.Sentry
	if cfg.CaptureSinkEnabled && cfg.SentryDSN != "" {
		sentrySink, err = capture.NewSentry(capture.SentryOptions{
			DSN:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     cfg.ServiceName + "@" + cfg.ServiceVersion,
		})
		if err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentrySink.Flush(2 * time.Second)
		sinks = append(sinks, sentrySink)
	}
	if cfg.CaptureSinkEnabled && cfg.AMQPURL != "" {
		mq, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer mq.Close()

		ch, err := mq.Channel()
		if err != nil {
			return fmt.Errorf("open channel: %w", err)
		}
		defer ch.Close()

		pub, err := queue.NewAMQPPublisher(ch, cfg.ErrorEventQueue)
		if err != nil {
			return err
		}
		sinks = append(sinks, capture.NewAMQP(pub))
		log.Info("forwarding error events", zap.String("queue", cfg.ErrorEventQueue))
	}

	q := queue.NewInMemoryQueue(log.Named("queue"))
	var sink capture.Sink = capture.Nop{}
	if len(sinks) > 0 {
		async, err := capture.NewAsync(q, sinks, log.Named("capture"))
		if err != nil {
			return err
		}
		sink = async
	}

	campaignRepo := repository.NewCampaignRepository(conn, dialect)
	campaignService := service.NewCampaignService(campaignRepo)

	reporter := telemetry.NewReporter(log.Named("errors"), sink, opts)
	campaignHandler := handler.NewCampaignHandler(campaignService, reporter, opts, log.Named("handler"))
	campaignHandler.Ping = conn.PingContext

	router := handler.NewRouter(campaignHandler, telemetry.NewMiddleware(log.Named("http"), opts, nil))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}

	// let queued capture deliveries finish before the sinks close
	q.Wait()
	return nil
}
