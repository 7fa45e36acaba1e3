/**
 * @description
 * This is the main entry point for the billing scheduler.
 * It is a non-HTTP, long-running process that executes scheduled tasks (cron
 * jobs): scanning for due subscriptions and charging them through the payment
 * manager. It initializes the configuration, the store, and the cron
 * scheduler, then starts it.
 */
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oiiaimeow/Reclaim/internal/config"
	"github.com/oiiaimeow/Reclaim/internal/engine"
	"github.com/oiiaimeow/Reclaim/internal/scheduler"
	"github.com/oiiaimeow/Reclaim/internal/store"
	rmrabbit "github.com/oiiaimeow/Reclaim/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load application configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// The scheduler only makes sense against a shared store.
	if cfg.StoreDriver != "postgres" {
		logger.Error("scheduler requires the postgres store driver", "driver", cfg.StoreDriver)
		os.Exit(1)
	}

	dbpool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")
	engineStore := store.NewPostgres(dbpool)

	// Renewal charges publish events like any other charge. A missing broker
	// degrades to a no-op publisher.
	var events engine.Publisher = engine.NopPublisher{}
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable; events disabled", "error", err)
	} else {
		defer rabbitProducer.Close()
		events = rabbitProducer
		logger.Info("rabbitmq producer connected")
	}

	// Initialize dependencies
	payments := engine.NewPaymentManager(engineStore, events, logger)
	jobs := scheduler.NewJobs(engineStore, payments, logger)
	sched := scheduler.NewScheduler(jobs, logger, cfg)

	// Start the cron scheduler in the background
	sched.Start()
	logger.Info("scheduler started")

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// Stop the scheduler
	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := sched.Stop()
	<-stopCtx.Done() // Wait for scheduler to fully stop
	logger.Info("scheduler stopped gracefully")
}
