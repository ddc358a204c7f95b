package refund

import (
	"testing"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWindow(t *testing.T) {
	tests := []struct {
		name    string
		typ     product.Type
		elapsed time.Duration
		ok      bool
	}{
		{"digital after 5h", product.TypeDigitalGame, 5 * time.Hour, true},
		{"digital at exactly 6h", product.TypeDigitalGame, 6 * time.Hour, true},
		{"digital just past 6h", product.TypeDigitalGame, 6*time.Hour + time.Second, false},
		{"peripheral after 2 days", product.TypePeripheral, 48 * time.Hour, true},
		{"console at exactly 7 days", product.TypeConsole, 7 * 24 * time.Hour, true},
		{"pc after 8 days", product.TypePC, 8 * 24 * time.Hour, false},
		{"physical game after 7 hours", product.TypePhysicalGame, 7 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWindow(tt.typ, purchase, purchase.Add(tt.elapsed))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrWindowExceeded)
		})
	}
}

func TestWindowExceededError_Messages(t *testing.T) {
	err := CheckWindow(product.TypeDigitalGame, purchase, purchase.Add(7*time.Hour))
	require.Error(t, err)
	assert.EqualError(t, err, "Refund time limit exceeded for digital game (6 hours)")

	err = CheckWindow(product.TypePeripheral, purchase, purchase.Add(8*24*time.Hour))
	require.Error(t, err)
	assert.EqualError(t, err, "Refund time limit exceeded for physical product (1 week)")

	var wErr *WindowExceededError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, 8*24*time.Hour, wErr.Elapsed)
	assert.Contains(t, wErr.Detail(), "192h0m0s elapsed")
}
