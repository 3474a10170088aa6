package http

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// APIKeyMiddleware проверяет заголовок X-API-Key. Пустой токен отключает
// проверку, что допустимо только в dev-окружении.
func APIKeyMiddleware(token string) func(http.Handler) http.Handler {
	expected := sha256.Sum256([]byte(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := sha256.Sum256([]byte(r.Header.Get("X-API-Key")))
			if subtle.ConstantTimeCompare(expected[:], got[:]) != 1 {
				WriteError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
