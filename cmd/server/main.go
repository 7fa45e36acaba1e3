/**
 * @description
 * This is the main entry point for the subscription engine's HTTP server. It
 * is responsible for initializing all components: configuration, the backing
 * store (in-memory or PostgreSQL), the RabbitMQ event producer, the Redis
 * rate limiter, the engine components, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/redis/go-redis/v9: Redis client for rate limiting.
 * - internal/api, internal/config, internal/engine, internal/store: Internal packages.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oiiaimeow/Reclaim/internal/api"
	"github.com/oiiaimeow/Reclaim/internal/config"
	"github.com/oiiaimeow/Reclaim/internal/engine"
	"github.com/oiiaimeow/Reclaim/internal/store"
	rmrabbit "github.com/oiiaimeow/Reclaim/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting subscription engine\" port=%s store=%s", cfg.ServerPort, cfg.StoreDriver)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	// Select the backing store. The in-memory store is for local development;
	// production runs against PostgreSQL with embedded migrations.
	var engineStore store.Store
	switch cfg.StoreDriver {
	case "postgres":
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database migration failed\" err=%v", err)
		}
		dbpool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
		}
		defer dbpool.Close()
		engineStore = store.NewPostgres(dbpool)
		log.Println("level=info component=bootstrap msg=\"database connected\"")
	case "memory":
		engineStore = store.NewMemory()
		log.Println("level=warn component=bootstrap msg=\"using in-memory store; state is not persisted\"")
	default:
		log.Fatalf("level=fatal component=bootstrap msg=\"unknown store driver\" driver=%s", cfg.StoreDriver)
	}

	// Initialize the RabbitMQ producer to publish events. The engine only
	// publishes, so a producer is all it needs; a missing broker degrades to
	// a no-op publisher rather than preventing boot.
	var events engine.Publisher = engine.NopPublisher{}
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; events disabled\" err=%v", err)
	} else {
		defer rabbitProducer.Close()
		events = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Connect to Redis for per-caller rate limiting. Missing Redis disables
	// rate limiting but does not prevent boot.
	var limiter *api.RedisRateLimiter
	if cfg.RateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient := redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
				} else {
					defer redisClient.Close()
					limiter = api.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the engine components.
	access, err := engine.NewAccessControl(ctx, engineStore, events, logger, cfg.AdminAccount)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"access control init failed\" err=%v", err)
	}
	oracle := engine.NewPriceOracle(engineStore, access, events, logger, cfg.OwnerAccount)
	vault := engine.NewSubscriptionVault(engineStore, events, logger, cfg.OwnerAccount)
	refunds, err := engine.NewRefundHandler(ctx, engineStore, events, logger, cfg.OwnerAccount)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"refund handler init failed\" err=%v", err)
	}
	payments := engine.NewPaymentManager(engineStore, events, logger)
	factory, err := engine.NewSubscriptionFactory(ctx, engineStore, events, logger,
		cfg.OwnerAccount, cfg.NativeToken, cfg.DeploymentFee, cfg.ProtocolFeeBps)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"factory init failed\" err=%v", err)
	}

	// Initialize the API handlers and router.
	handlers := api.NewHandlers(access, oracle, vault, refunds, payments, factory)
	router := api.NewRouter(handlers, cfg.JWTSecret, limiter, cfg.RateLimitPerMinute)

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
