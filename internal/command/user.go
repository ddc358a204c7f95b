package command

import (
	"context"
	"errors"
	"log"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/infrastructure/store"
)

// RegisterUser creates a buyer or seller account.
func (h *Handler) RegisterUser(ctx context.Context, cmd RegisterUser) (*user.User, error) {
	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, err
	}
	now := h.now()

	u, err := user.New(newID(), cmd.Email, hash, cmd.Name, cmd.Role, now)
	if err != nil {
		return nil, err
	}

	err = h.store.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		return emit(ctx, tx, u.ID, user.AggregateType, user.EventUserRegistered, user.UserRegistered{
			UserID:       u.ID,
			Email:        u.Email,
			Name:         u.Name,
			Role:         u.Role,
			RegisteredAt: now,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[User] Registered %s as %s", u.ID, u.Role)
	return u, nil
}

// Authenticate returns the active account matching email and password.
func (h *Handler) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	u, err := h.store.GetUserByEmail(ctx, email)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, user.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return nil, user.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, user.ErrUserDeactivated
	}
	return u, nil
}

// DeleteUser deactivates an account. The account's orders, refunds and ledger
// entries are kept.
func (h *Handler) DeleteUser(ctx context.Context, cmd DeleteUser) error {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleAdmin)); err != nil {
		return err
	}
	if cmd.UserID == cmd.Actor.ID {
		return user.ErrSelfDeletion
	}
	now := h.now()

	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if !u.IsActive {
			return nil
		}
		if err := tx.DeactivateUser(ctx, u.ID, now); err != nil {
			return err
		}
		return emit(ctx, tx, u.ID, user.AggregateType, user.EventUserDeactivated, user.UserDeactivated{
			UserID:        u.ID,
			DeactivatedBy: cmd.Actor.ID,
			DeactivatedAt: now,
		}, now)
	})
	if err != nil {
		return err
	}

	log.Printf("[User] %s deactivated %s", cmd.Actor.ID, cmd.UserID)
	return nil
}
