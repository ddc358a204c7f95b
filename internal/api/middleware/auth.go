package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/user"
)

type contextKey string

const UserContextKey contextKey = "user"

const accessCookie = "access_token"

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ExtractToken returns the access token from the cookie set at login, or
// from a bearer Authorization header. The cookie wins when both are sent.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(accessCookie); err == nil {
		return c.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}

func withClaims(r *http.Request, claims *auth.Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, claims))
}

// AuthMiddleware rejects requests without a valid access token.
func AuthMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				respondError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				respondError(w, "token has expired", http.StatusUnauthorized)
				return
			case err != nil:
				respondError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, withClaims(r, claims))
		})
	}
}

// OptionalAuthMiddleware attaches claims when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuthMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := ExtractToken(r); token != "" {
				if claims, err := jwtService.ValidateAccessToken(token); err == nil {
					r = withClaims(r, claims)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits callers holding one of roles. It must run after
// AuthMiddleware.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				respondError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(roles, claims.Role) {
				respondError(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUserFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.Claims)
	return claims, ok
}

// PrincipalFromContext returns the authenticated caller, or the zero
// Principal for anonymous requests. The zero Principal holds no capability.
func PrincipalFromContext(ctx context.Context) auth.Principal {
	claims, ok := GetUserFromContext(ctx)
	if !ok {
		return auth.Principal{}
	}
	return claims.Principal()
}
