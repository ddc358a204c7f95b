package refund

import (
	"fmt"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/product"
)

const (
	DigitalWindow  = 6 * time.Hour
	PhysicalWindow = 7 * 24 * time.Hour
)

// Window is how long after purchase a product of type t may be refunded.
func Window(t product.Type) time.Duration {
	if t.IsDigital() {
		return DigitalWindow
	}
	return PhysicalWindow
}

// WindowExceededError rejects a refund asked for after the window closed.
type WindowExceededError struct {
	ProductType product.Type
	Elapsed     time.Duration
}

func (e *WindowExceededError) Error() string {
	if e.ProductType.IsDigital() {
		return "Refund time limit exceeded for digital game (6 hours)"
	}
	return "Refund time limit exceeded for physical product (1 week)"
}

func (e *WindowExceededError) Unwrap() error { return apperr.ErrWindowExceeded }

// Detail includes the elapsed time, for logs.
func (e *WindowExceededError) Detail() string {
	return fmt.Sprintf("%s: %s elapsed, window %s", e.Error(), e.Elapsed.Round(time.Minute), Window(e.ProductType))
}

// CheckWindow returns a *WindowExceededError once strictly more than the
// window has passed since purchase.
func CheckWindow(t product.Type, purchased, now time.Time) error {
	elapsed := now.Sub(purchased)
	if elapsed > Window(t) {
		return &WindowExceededError{ProductType: t, Elapsed: elapsed}
	}
	return nil
}
