package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AstromanXD/Astricord-sub001/pkg/httputil"
	"github.com/AstromanXD/Astricord-sub001/pkg/middleware"
	"github.com/AstromanXD/Astricord-sub001/pkg/observability"
	"github.com/AstromanXD/Astricord-sub001/pkg/permissions"
)

// maxBodyBytes caps REST request bodies. Nothing in the API carries
// large payloads; attachments go through a separate media service.
const maxBodyBytes = 1 << 20

// PermissionCache caches resolved permission sets with eager
// invalidation. *storage.RedisClient satisfies it; nil disables caching.
type PermissionCache interface {
	GetServerPermissions(ctx context.Context, serverID, userID string) (permissions.PermissionSet, bool, error)
	SetServerPermissions(ctx context.Context, serverID, userID string, set permissions.PermissionSet) error
	GetChannelPermissions(ctx context.Context, channelID, userID string) (permissions.PermissionSet, bool, error)
	SetChannelPermissions(ctx context.Context, channelID, userID string, set permissions.PermissionSet) error
	InvalidateUser(ctx context.Context, serverID, userID string) error
	InvalidateChannel(ctx context.Context, channelID string) error
	InvalidateServer(ctx context.Context, serverID string) error
}

// Publisher is the fan-out surface the mutation endpoints use.
// *hub.Registry satisfies it.
type Publisher interface {
	Publish(topic string, event, payload interface{})
}

// Options wires the server's collaborators. Store, Resolver, and
// Registry are required; the rest degrade gracefully when nil.
type Options struct {
	Store    *permissions.SQLStore
	Resolver *permissions.Resolver
	Registry Publisher

	// Gateway handles /v1/gateway. Mounted outside the instrumented
	// subrouter: the metrics response writer does not implement
	// http.Hijacker, which the websocket upgrade needs.
	Gateway http.Handler

	Cache     PermissionCache
	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.DistributedRateLimitMiddleware
	Log       *logrus.Logger
	Metrics   *observability.Metrics

	// TracingEnabled wraps the router in otelhttp instrumentation.
	TracingEnabled bool
}

// Server is the HTTP surface: the websocket gateway mount plus the
// mutation and decision endpoints that exercise the resolver and the
// hub.
type Server struct {
	router   *mux.Router
	handler  http.Handler
	store    *permissions.SQLStore
	resolver *permissions.Resolver
	registry Publisher
	cache    PermissionCache
	log      *logrus.Logger
	metrics  *observability.Metrics
}

// NewServer creates the API server and sets up its routes.
func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		router:   mux.NewRouter(),
		store:    opts.Store,
		resolver: opts.Resolver,
		registry: opts.Registry,
		cache:    opts.Cache,
		log:      log,
		metrics:  opts.Metrics,
	}
	s.setupRoutes(opts)

	s.handler = s.router
	if opts.TracingEnabled {
		s.handler = otelhttp.NewHandler(s.router, "astricord.api")
	}
	return s
}

// Handler returns the root handler, including the gateway mount.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes(opts Options) {
	// Gateway first: it must see the raw response writer.
	if opts.Gateway != nil {
		gw := opts.Gateway
		if opts.RateLimit != nil {
			gw = opts.RateLimit.GatewayHandler(gw)
		}
		s.router.Handle("/v1/gateway", gw).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(httputil.RequestIDMiddleware)
	api.Use(httputil.LoggingMiddleware)
	api.Use(httputil.RecoveryMiddleware)
	api.Use(httputil.MaxBytesMiddleware(maxBodyBytes))
	if s.metrics != nil {
		api.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	if opts.Auth != nil {
		api.Use(opts.Auth.Handler)
	}
	if opts.RateLimit != nil {
		api.Use(opts.RateLimit.Handler)
	}
	api.Use(middleware.RequireIdentity)

	perm := permissions.NewMiddleware(s.resolver, s.metrics)
	serverScope := func(flag permissions.PermissionSet) func(http.Handler) http.Handler {
		return perm.RequireServerPermission("serverID", flag)
	}
	channelScope := func(flag permissions.PermissionSet) func(http.Handler) http.Handler {
		return perm.RequireChannelPermission("channelID", flag)
	}

	// Server lifecycle and membership.
	api.HandleFunc("/servers", s.createServer).Methods(http.MethodPost)
	api.HandleFunc("/servers/{serverID}/members", s.addMember).Methods(http.MethodPost)
	api.HandleFunc("/servers/{serverID}/members/{userID}/permissions", s.memberPermissions).Methods(http.MethodGet)
	api.Handle("/servers/{serverID}/members/{userID}/timeout",
		serverScope(permissions.PermModerateMembers)(http.HandlerFunc(s.setTimeout))).Methods(http.MethodPut)

	// Roles.
	api.Handle("/servers/{serverID}/roles",
		serverScope(permissions.PermManageRoles)(http.HandlerFunc(s.createRole))).Methods(http.MethodPost)
	api.Handle("/servers/{serverID}/roles/{roleID}",
		serverScope(permissions.PermManageRoles)(http.HandlerFunc(s.deleteRole))).Methods(http.MethodDelete)
	api.Handle("/servers/{serverID}/members/{userID}/roles/{roleID}",
		serverScope(permissions.PermManageRoles)(http.HandlerFunc(s.assignRole))).Methods(http.MethodPut)
	api.Handle("/servers/{serverID}/members/{userID}/roles/{roleID}",
		serverScope(permissions.PermManageRoles)(http.HandlerFunc(s.unassignRole))).Methods(http.MethodDelete)

	// Channels.
	api.HandleFunc("/servers/{serverID}/channels", s.listChannels).Methods(http.MethodGet)
	api.Handle("/servers/{serverID}/channels",
		serverScope(permissions.PermManageChannels)(http.HandlerFunc(s.createChannel))).Methods(http.MethodPost)

	// Messages and overwrites.
	api.HandleFunc("/channels/{channelID}/members/{userID}/permissions", s.channelPermissions).Methods(http.MethodGet)
	api.Handle("/channels/{channelID}/messages",
		channelScope(permissions.PermSendMessages)(http.HandlerFunc(s.createMessage))).Methods(http.MethodPost)
	api.Handle("/channels/{channelID}/overwrites/{targetID}",
		channelScope(permissions.PermManageRoles)(http.HandlerFunc(s.upsertOverwrite))).Methods(http.MethodPut)
	api.Handle("/channels/{channelID}/overwrites/{overwriteID}",
		channelScope(permissions.PermManageRoles)(http.HandlerFunc(s.deleteOverwrite))).Methods(http.MethodDelete)
}

// invalidate runs a cache invalidation, logging rather than failing the
// request: the TTL bounds staleness if Redis is down.
func (s *Server) invalidate(ctx context.Context, fn func(context.Context) error) {
	if s.cache == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.log.WithError(err).Warn("permission cache invalidation failed")
	}
}
