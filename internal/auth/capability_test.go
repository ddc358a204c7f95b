package auth

import (
	"testing"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	buyer := Principal{ID: "buyer-1", Role: user.RoleBuyer}
	seller := Principal{ID: "seller-1", Role: user.RoleSeller}
	admin := Principal{ID: "admin-1", Role: user.RoleAdmin}

	tests := []struct {
		name string
		p    Principal
		caps []Capability
		ok   bool
	}{
		{"role only", buyer, []Capability{Require(user.RoleBuyer)}, true},
		{"wrong role", buyer, []Capability{Require(user.RoleSeller)}, false},
		{"owner matches", seller, []Capability{Require(user.RoleSeller).OwnedBy("seller-1")}, true},
		{"owner differs", seller, []Capability{Require(user.RoleSeller).OwnedBy("seller-2")}, false},
		{"any of", admin, []Capability{Require(user.RoleBuyer).OwnedBy("buyer-1"), Require(user.RoleAdmin)}, true},
		{"anonymous", Principal{Role: user.RoleAdmin}, []Capability{Require(user.RoleAdmin)}, false},
		{"no capabilities", admin, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.p, tt.caps...)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrForbidden)
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}
