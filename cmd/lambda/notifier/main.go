package main

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/game-marketplace/internal/config"
	"github.com/example/game-marketplace/internal/email"
	"github.com/example/game-marketplace/internal/infrastructure/kafka"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/example/game-marketplace/internal/notification"
)

var notificationHandler *notification.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Lambda Notifier] Invalid configuration: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("[Lambda Notifier] DATABASE_URL is required")
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Lambda Notifier] Failed to connect to PostgreSQL: %v", err)
	}

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	notificationHandler = notification.NewHandler(emailSvc, store.NewPostgresStore(db))

	log.Printf("[Lambda Notifier] Initialized successfully (SMTP: %s:%s)", cfg.SMTPHost, cfg.SMTPPort)
}

// handler processes one MSK batch. Undecodable records are skipped; a failed
// delivery fails the batch so Lambda retries it.
func handler(ctx context.Context, kafkaEvent events.KafkaEvent) error {
	records := kafka.LambdaRecords(kafkaEvent)
	log.Printf("[Lambda Notifier] Received %d records", len(records))

	failed := 0
	for _, record := range records {
		event, err := kafka.FromLambdaRecord(record)
		if err != nil {
			log.Printf("[Lambda Notifier] Skipping record: %v", err)
			continue
		}

		if err := notificationHandler.HandleEvent(ctx, event); err != nil {
			log.Printf("[Lambda Notifier] Failed to process event %s: %v", event.ID, err)
			failed++
		}
	}

	log.Printf("[Lambda Notifier] Processed %d/%d records successfully", len(records)-failed, len(records))
	if failed > 0 {
		return fmt.Errorf("%d of %d records failed", failed, len(records))
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
