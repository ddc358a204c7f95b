package auth

import (
	"slices"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/user"
)

var ErrForbidden = apperr.New(apperr.ErrUnauthorized, "forbidden")

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID   string    `json:"id"`
	Role user.Role `json:"role"`
}

// System is the principal for transitions the platform makes itself.
var System = Principal{ID: "system", Role: user.RoleSystem}

// Capability names who may perform an operation: one of Roles, and, when
// Owner is set, only the principal with that id.
type Capability struct {
	Roles []user.Role
	Owner string
}

func Require(roles ...user.Role) Capability {
	return Capability{Roles: roles}
}

// OwnedBy narrows c to the principal whose id is ownerID.
func (c Capability) OwnedBy(ownerID string) Capability {
	c.Owner = ownerID
	return c
}

func (c Capability) allows(p Principal) bool {
	if p.ID == "" || !slices.Contains(c.Roles, p.Role) {
		return false
	}
	return c.Owner == "" || c.Owner == p.ID
}

// Authorize succeeds when p holds any of caps.
func Authorize(p Principal, caps ...Capability) error {
	for _, c := range caps {
		if c.allows(p) {
			return nil
		}
	}
	return ErrForbidden
}
