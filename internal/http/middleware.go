package http

import (
	"context"
	"net/http"

	"github.com/gemcart/gemcart/internal/domain"
)

type contextKey string

const identityKey contextKey = "cart_identity"

// IdentityMiddleware resolves the caller from X-User-ID or X-Session-ID.
// Real authentication lives in the API gateway; by the time requests reach
// this service the headers are trusted.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := domain.CartIdentity{
			UserID:    r.Header.Get("X-User-ID"),
			SessionID: r.Header.Get("X-Session-ID"),
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) domain.CartIdentity {
	if identity, ok := ctx.Value(identityKey).(domain.CartIdentity); ok {
		return identity
	}
	return domain.CartIdentity{}
}
