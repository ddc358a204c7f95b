package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/example/game-marketplace/internal/domain/apperr"
)

var (
	ErrPasswordTooShort = apperr.New(apperr.ErrValidation, "password must be at least 8 characters")
	ErrPasswordTooLong  = apperr.New(apperr.ErrValidation, "password must be at most 72 bytes")
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
	maxPasswordBytes  = 72
)

func HashPassword(password string) (string, error) {
	if len([]rune(password)) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
