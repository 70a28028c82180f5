package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"girodesk/internal/domain"
	"girodesk/internal/repository"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// TokenMiddleware authenticates requests by API token, from the
// Authorization header or, for websocket handshakes, the token query
// parameter.
func TokenMiddleware(tokenRepo *repository.APITokenRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tok *domain.APIToken

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				plainToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
				if plainToken != "" {
					if t, err := tokenRepo.FindByPlainToken(r.Context(), plainToken); err == nil {
						tok = t
					}
				}
			}

			if tok == nil {
				if token := r.URL.Query().Get("token"); token != "" {
					if t, err := tokenRepo.FindByPlainToken(r.Context(), token); err == nil {
						tok = t
					}
				}
			}

			if tok == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if tok.ExpiresAt != nil && tok.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, tok.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}
