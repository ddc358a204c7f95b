package wishlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEntry_NotifiesByDefault(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	e := NewEntry("buyer-1", "game-1", now)

	assert.Equal(t, Entry{BuyerID: "buyer-1", ProductID: "game-1", AddedAt: now, NotifyOnSale: true}, e)
}
