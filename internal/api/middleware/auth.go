package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/medlife-ai/medassist/internal/auth"
	"github.com/medlife-ai/medassist/internal/db"
	"gorm.io/gorm"
)

type contextKey string

const userEmailKey contextKey = "userEmail"

// JWTAuth validates the bearer token from the Authorization header against
// the signing secret stored in the database.
func JWTAuth(database *gorm.DB) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				unauthorized(w)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			email, err := auth.ParseAccessToken(db.GetJWTSecret(database), token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userEmailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserEmail returns the authenticated email set by JWTAuth, or "".
func UserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(userEmailKey).(string); ok {
		return email
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"detail": "Could not validate credentials"}`))
}
