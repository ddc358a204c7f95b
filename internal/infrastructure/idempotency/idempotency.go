// Package idempotency remembers checkout requests by client-supplied key so
// a retried request returns the order created by the first attempt.
package idempotency

import (
	"context"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
)

var (
	ErrKeyExists   = apperr.New(apperr.ErrInvalidState, "idempotency key already used")
	ErrKeyNotFound = apperr.New(apperr.ErrNotFound, "idempotency key not found")
	ErrInProgress  = apperr.New(apperr.ErrInvalidState, "a request with this idempotency key is still in progress")
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type Record struct {
	Key       string    `json:"key"`
	Status    Status    `json:"status"`
	OrderID   string    `json:"order_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store claims keys before the work they guard and records the outcome.
type Store interface {
	// Claim reserves key; a live key returns ErrKeyExists.
	Claim(ctx context.Context, key string, at time.Time) error
	Get(ctx context.Context, key string) (*Record, error)
	Complete(ctx context.Context, key, orderID string) error
	// Release frees a claimed key whose work failed so it can be retried.
	Release(ctx context.Context, key string) error
}
