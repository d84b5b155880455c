package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// authSalt is a fixed application salt for deriving comparison digests. The
// derivation gives both sides a uniform length so comparison time does not
// leak the configured key's length.
var authSalt = []byte("paddock-api-auth-v1")

const (
	authIterations = 4096
	authKeyLen     = 32
)

// deriveAuthKey stretches a token into a fixed-length digest for comparison.
func deriveAuthKey(token string) []byte {
	return pbkdf2.Key([]byte(token), authSalt, authIterations, authKeyLen, sha256.New)
}

// Auth returns middleware that validates API requests using either a Bearer
// token in the Authorization header or a static key in the X-API-Key header.
// If apiKey is empty, the middleware passes all requests through (disabled).
// User identity (X-User-ID) is carried separately; this key gates access to
// the API surface as a whole.
func Auth(apiKey string) func(http.Handler) http.Handler {
	var expected []byte
	if apiKey != "" {
		expected = deriveAuthKey(apiKey)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == nil {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			if subtle.ConstantTimeCompare(deriveAuthKey(token), expected) != 1 {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}

	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
