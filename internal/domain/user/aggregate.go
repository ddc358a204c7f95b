package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
)

const AggregateType = "User"

// Role is the marketplace role of an actor. RoleSystem is never assigned to
// an account; it marks transitions the platform performs on its own.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Registrable reports whether an account may sign up with the role.
// Admins are provisioned out of band.
func (r Role) Registrable() bool {
	return r == RoleBuyer || r == RoleSeller
}

var (
	ErrUserNotFound       = apperr.New(apperr.ErrNotFound, "user not found")
	ErrInvalidEmail       = apperr.New(apperr.ErrValidation, "a valid email is required")
	ErrInvalidName        = apperr.New(apperr.ErrValidation, "name is required")
	ErrInvalidRole        = apperr.New(apperr.ErrValidation, "role must be buyer or seller")
	ErrEmailTaken         = apperr.New(apperr.ErrInvalidState, "Email already registered")
	ErrInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "invalid email or password")
	ErrUserDeactivated    = apperr.New(apperr.ErrUnauthorized, "user account is deactivated")
	ErrSelfDeletion       = apperr.New(apperr.ErrValidation, "admins cannot delete their own account")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// New builds an active account. The password must already be hashed.
func New(id, email, passwordHash, name string, role Role, now time.Time) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	if !role.Registrable() {
		return nil, ErrInvalidRole
	}
	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
