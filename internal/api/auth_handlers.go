package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/example/game-marketplace/internal/api/middleware"
	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/command"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/query"
)

const refreshCookiePath = "/api/auth/refresh"

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	jwtService   *auth.JWTService
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		jwtService:   jwtService,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response. The access token is
// also set as a cookie; API clients send it back as a bearer token.
type AuthResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Message     string       `json:"message,omitempty"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Register handles user registration. Role defaults to buyer.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req command.RegisterUser
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = user.RoleBuyer
	}

	newUser, err := h.cmdHandler.RegisterUser(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.issueTokens(w, r, newUser, http.StatusCreated, "Registration successful")
}

// Login handles user login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.cmdHandler.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, user.ErrInvalidCredentials):
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	case errors.Is(err, user.ErrUserDeactivated):
		respondJSONError(w, "Account is deactivated", http.StatusForbidden)
		return
	case err != nil:
		respondError(w, r, err)
		return
	}

	h.issueTokens(w, r, u, http.StatusOK, "Login successful")
}

// Logout clears the auth cookies. Tokens are stateless and expire on their own.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	u, err := h.queryHandler.GetUser(r.Context(), userID)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "User not found", http.StatusUnauthorized)
		return
	}
	if !u.IsActive {
		h.clearAuthCookies(w)
		respondJSONError(w, "Account is deactivated", http.StatusForbidden)
		return
	}

	h.issueTokens(w, r, u, http.StatusOK, "Token refreshed")
}

// Me returns the current authenticated user's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	u, err := h.queryHandler.GetUser(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserResponse(u))
}

// Helper methods

func (h *AuthHandlers) issueTokens(w http.ResponseWriter, r *http.Request, u *user.User, status int, message string) {
	accessToken, accessExpiry, err := h.jwtService.GenerateAccessToken(u)
	if err != nil {
		respondError(w, r, err)
		return
	}
	refreshToken, refreshExpiry, err := h.jwtService.GenerateRefreshToken(u.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     refreshCookiePath,
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondJSON(w, status, AuthResponse{
		User:        newUserResponse(u),
		AccessToken: accessToken,
		ExpiresAt:   accessExpiry,
		Message:     message,
	})
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
