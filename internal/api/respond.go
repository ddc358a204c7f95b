package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/refund"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrInvalidState:
		return http.StatusConflict
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrWindowExceeded:
		return http.StatusUnprocessableEntity
	case apperr.ErrUnauthorized:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondError writes err with the status of its kind. Errors without a kind
// are logged and hidden behind a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s: %v", r.Method, r.URL.Path, err)
		respondJSONError(w, "internal server error", status)
		return
	}

	body := map[string]any{"error": err.Error()}
	var windowErr *refund.WindowExceededError
	if errors.As(err, &windowErr) {
		body["product_type"] = windowErr.ProductType
		body["elapsed_seconds"] = int64(windowErr.Elapsed.Seconds())
	}
	respondJSON(w, status, body)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
