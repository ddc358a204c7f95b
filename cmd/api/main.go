package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/game-marketplace/internal/api"
	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/command"
	"github.com/example/game-marketplace/internal/config"
	"github.com/example/game-marketplace/internal/infrastructure/cache"
	"github.com/example/game-marketplace/internal/infrastructure/idempotency"
	"github.com/example/game-marketplace/internal/infrastructure/kafka"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/example/game-marketplace/internal/outbox"
	"github.com/example/game-marketplace/internal/query"
	"github.com/redis/go-redis/v9"
)

// backingStore is what the API needs from persistence: transactional writes
// plus the outbox the relay drains.
type backingStore interface {
	store.Store
	store.Outbox
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}
	if err := cfg.ValidateJWT(); err != nil {
		log.Fatalf("[API] %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] Game Marketplace API")
	log.Println("[API] ========================================")

	// Persistence
	var s backingStore
	if cfg.DatabaseURL != "" {
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		if err := store.RunMigrations(db, cfg.MigrationsPath); err != nil {
			log.Fatalf("[API] Failed to run migrations: %v", err)
		}
		s = store.NewPostgresStore(db)
		log.Println("[API] Store: PostgreSQL")
	} else {
		s = store.NewMemoryStore()
		log.Println("[API] Store: in-memory (DATABASE_URL not set)")
	}

	// Carts
	var carts cache.CartStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("[API] Failed to connect to Redis: %v", err)
		}
		carts = cache.NewRedisCartStore(client, cfg.CartTTL)
		log.Printf("[API] Carts: Redis %s", cfg.RedisAddr)
	} else {
		carts = cache.NewMemoryCartStore()
		log.Println("[API] Carts: in-memory (REDIS_ADDR not set)")
	}

	// Checkout idempotency keys
	var keys idempotency.Store
	if cfg.IdempotencyTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("[API] Failed to load AWS config: %v", err)
		}
		keys = idempotency.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.IdempotencyTable, cfg.IdempotencyTTL)
		log.Printf("[API] Idempotency: DynamoDB table %s", cfg.IdempotencyTable)
	} else {
		keys = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
		log.Println("[API] Idempotency: in-memory (IDEMPOTENCY_TABLE not set)")
	}

	var wg sync.WaitGroup

	// Outbox relay
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		relay := outbox.NewRelay(s, producer, cfg.OutboxInterval)

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("[API] Relaying outbox to Kafka %v topic %s", cfg.KafkaBrokers, cfg.KafkaTopic)
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[API] Outbox relay stopped: %v", err)
			}
		}()
	} else {
		log.Println("[API] Kafka disabled; events stay in the outbox")
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	cmdHandler := command.NewHandler(s, carts, keys)
	queryHandler := query.NewHandler(s, carts)

	router := api.NewRouter(api.RouterConfig{
		Handlers:     api.NewHandlers(cmdHandler, queryHandler),
		AuthHandlers: api.NewAuthHandlers(cmdHandler, queryHandler, jwtService),
		JWTService:   jwtService,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Println("[API] ========================================")
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		log.Println("[API] ========================================")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}

	cancel() // stop the relay after in-flight requests have committed
	wg.Wait()
}
