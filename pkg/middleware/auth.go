package middleware

import (
	"net/http"
	"strings"

	"github.com/AstromanXD/Astricord-sub001/pkg/auth"
	"github.com/AstromanXD/Astricord-sub001/pkg/contextkeys"
	"github.com/AstromanXD/Astricord-sub001/pkg/httputil"
)

// AuthMiddleware validates bearer identity tokens on REST requests and
// stores the verified identity in the request context.
type AuthMiddleware struct {
	verifier *auth.Verifier
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware. With
// optional set, requests without an Authorization header pass through
// anonymously; requests that present a token still must present a valid
// one.
func NewAuthMiddleware(verifier *auth.Verifier, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		identity, err := m.verifier.Verify(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity extracts the verified identity from a request, or nil when
// the request is anonymous.
func GetIdentity(r *http.Request) *auth.Identity {
	identity, ok := r.Context().Value(contextkeys.IdentityKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireIdentity rejects anonymous requests. Mount it after
// AuthMiddleware on routes that must know who is calling even when the
// middleware itself runs in optional mode.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r) == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
