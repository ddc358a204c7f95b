// Package outbox forwards events committed to the outbox table to Kafka.
package outbox

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/game-marketplace/internal/infrastructure/store"
)

const defaultBatchSize = 100

type Publisher interface {
	Publish(ctx context.Context, events []store.Event) error
}

// Relay polls the outbox and publishes pending events oldest first. An
// event is marked published only after the publisher accepted it, so a
// crash in between delivers it again on the next poll.
type Relay struct {
	outbox    store.Outbox
	publisher Publisher
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewRelay(o store.Outbox, p Publisher, interval time.Duration) *Relay {
	return &Relay{
		outbox:    o,
		publisher: p,
		interval:  interval,
		batchSize: defaultBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run relays until ctx is cancelled. Full batches are drained without
// waiting for the next tick.
func (r *Relay) Run(ctx context.Context) error {
	log.Printf("[Outbox] Relay started, polling every %s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				log.Printf("[Outbox] Relay failed: %v", err)
				break
			}
			if n < r.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			log.Println("[Outbox] Relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many events it carried.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.outbox.PendingEvents(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, events); err != nil {
		return 0, fmt.Errorf("publish %d events: %w", len(events), err)
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}

	log.Printf("[Outbox] Published %d events", len(events))
	return len(events), nil
}
