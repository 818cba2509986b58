package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcpgateway/gateway/internal/auth"
	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// identityContextKey is the context key under which the admin auth
// middleware stores the validated auth.Identity for downstream handlers.
type identityContextKey struct{}

// identityFromContext returns the Identity the admin auth middleware placed
// on ctx, and false if none is present.
func identityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(auth.Identity)
	return id, ok
}

// requirePlatformAdmin wraps next, rejecting any request that doesn't carry
// a valid bearer token for a platform-admin identity. Mirrors the bearer
// token extraction the MCP transport layer's session auth uses, but gates
// on IsPlatformAdmin rather than per-entity visibility (spec §6.2).
func requirePlatformAdmin(issuer *auth.Issuer, revocation auth.RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, gwerrors.AuthRequired("missing bearer token"))
				return
			}

			claims, err := issuer.Validate(token, revocation)
			if err != nil {
				writeError(w, gwerrors.AuthRequired("invalid token: %v", err))
				return
			}
			if !claims.IsPlatformAdmin {
				writeError(w, gwerrors.Forbidden("platform admin role required"))
				return
			}

			identity := claims.Identity(nil)
			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header, returning "" if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
