package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type contextKey string

// AdminContextKey marks requests that passed admin authentication
const AdminContextKey contextKey = "admin"

// AdminKeyCost is the bcrypt cost used for admin key hashes
const AdminKeyCost = 12

// ErrAdminKeyTooShort is returned when hashing an admin key shorter than 32 characters
var ErrAdminKeyTooShort = errors.New("admin key must be at least 32 characters")

// HashAdminKey returns the bcrypt hash to store as security.admin_key_hash
func HashAdminKey(key string) (string, error) {
	if len(strings.TrimSpace(key)) < 32 {
		return "", ErrAdminKeyTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), AdminKeyCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IsAdmin reports whether the request was authenticated as admin
func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(AdminContextKey).(bool)
	return admin
}

// AdminKeyAuth creates middleware that checks the admin API key header against a bcrypt hash.
// An empty hash disables the protected routes entirely.
func AdminKeyAuth(keyHash, headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				writeAuthError(w, http.StatusForbidden, "Admin API is disabled.")
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				writeAuthError(w, http.StatusUnauthorized, "API key is required.")
				return
			}

			// bcrypt comparison is constant-time
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(providedKey)); err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid API key.")
				return
			}

			ctx := context.WithValue(r.Context(), AdminContextKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
