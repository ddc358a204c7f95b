package user

import "time"

const (
	EventUserRegistered  = "UserRegistered"
	EventUserDeactivated = "UserDeactivated"
)

type UserRegistered struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

type UserDeactivated struct {
	UserID        string    `json:"user_id"`
	DeactivatedBy string    `json:"deactivated_by"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}
