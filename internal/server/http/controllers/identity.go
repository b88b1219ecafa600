package controllers

import (
	"context"
	"net/http"
)

// Identity is the caller as verified by the upstream gateway. This service
// trusts the X-User-ID and X-Username headers; authentication itself happens
// before requests reach it.
type Identity struct {
	UserID   string
	Username string
}

type identityCtxKey struct{}

// RequireIdentity rejects requests without a forwarded user identity and
// stores the identity in the request context for handlers.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "Missing identity")
			return
		}
		username := r.Header.Get("X-Username")
		if username == "" {
			username = userID
		}
		ctx := context.WithValue(r.Context(), identityCtxKey{}, Identity{
			UserID:   userID,
			Username: username,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the identity stored by RequireIdentity.
func identityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityCtxKey{}).(Identity)
	return id
}
