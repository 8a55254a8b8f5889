package permissions

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AstromanXD/Astricord-sub001/pkg/auth"
	"github.com/AstromanXD/Astricord-sub001/pkg/contextkeys"
	"github.com/AstromanXD/Astricord-sub001/pkg/observability"
)

// Middleware gates HTTP routes on resolved permission sets. Route
// handlers behind it can assume the caller holds the required flags.
type Middleware struct {
	resolver *Resolver
	metrics  *observability.Metrics
}

// NewMiddleware creates permission-checking middleware. metrics may be
// nil.
func NewMiddleware(resolver *Resolver, metrics *observability.Metrics) *Middleware {
	return &Middleware{resolver: resolver, metrics: metrics}
}

// RequireServerPermission requires flag on the server named by the
// serverVar route variable.
func (m *Middleware) RequireServerPermission(serverVar string, flag PermissionSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := identityFromRequest(r)
			if identity == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			serverID := mux.Vars(r)[serverVar]
			if serverID == "" {
				http.Error(w, "Server ID required", http.StatusBadRequest)
				return
			}

			set, err := m.resolver.ServerPermissions(r.Context(), serverID, identity.UserID)
			if err != nil {
				http.Error(w, "Permission check failed", http.StatusInternalServerError)
				return
			}

			if !m.record("server", flag, set) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireChannelPermission requires flag on the channel named by the
// channelVar route variable.
func (m *Middleware) RequireChannelPermission(channelVar string, flag PermissionSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := identityFromRequest(r)
			if identity == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			channelID := mux.Vars(r)[channelVar]
			if channelID == "" {
				http.Error(w, "Channel ID required", http.StatusBadRequest)
				return
			}

			set, err := m.resolver.ChannelPermissions(r.Context(), channelID, identity.UserID)
			if err != nil {
				http.Error(w, "Permission check failed", http.StatusInternalServerError)
				return
			}

			if !m.record("channel", flag, set) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) record(scope string, flag, set PermissionSet) bool {
	allowed := set.Has(flag)
	if m.metrics != nil {
		outcome := "denied"
		if allowed {
			outcome = "allowed"
		}
		m.metrics.PermissionChecksTotal.WithLabelValues(scope, outcome).Inc()
	}
	return allowed
}

func identityFromRequest(r *http.Request) *auth.Identity {
	identity, _ := r.Context().Value(contextkeys.IdentityKey).(*auth.Identity)
	return identity
}
