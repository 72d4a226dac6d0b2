package routers

import (
	"context"
	"net/http"
	"strings"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/auth"
	"github.com/AlexeySalamakhin/storefront/cmd/storefront/models"
)

type identityKey struct{}

// AuthMiddleware accepts a Bearer token or the "jwt" cookie.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "пользователь не аутентифицирован"})
				return
			}
			claims, err := auth.ParseJWT(secret, token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: err.Error()})
				return
			}
			ctx := context.WithValue(r.Context(), identityKey{}, claims.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie("jwt"); err == nil {
		return c.Value
	}
	return ""
}

func GetIdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(models.Identity)
	return id, ok
}
