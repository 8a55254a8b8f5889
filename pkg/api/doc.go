// Package api provides the HTTP surface: the websocket gateway mount
// and the REST endpoints that exercise the permission resolver and the
// fan-out hub.
//
// # Routes
//
// Realtime:
//
//	GET /v1/gateway                 websocket upgrade (rate limited per IP)
//
// Servers and membership:
//
//	POST   /v1/servers
//	POST   /v1/servers/{serverID}/members
//	GET    /v1/servers/{serverID}/members/{userID}/permissions
//	PUT    /v1/servers/{serverID}/members/{userID}/timeout
//
// Roles:
//
//	POST   /v1/servers/{serverID}/roles
//	DELETE /v1/servers/{serverID}/roles/{roleID}
//	PUT    /v1/servers/{serverID}/members/{userID}/roles/{roleID}
//	DELETE /v1/servers/{serverID}/members/{userID}/roles/{roleID}
//
// Channels:
//
//	GET    /v1/servers/{serverID}/channels        visibility-filtered
//	POST   /v1/servers/{serverID}/channels
//	POST   /v1/channels/{channelID}/messages      publish + echo, no storage
//	PUT    /v1/channels/{channelID}/overwrites/{targetID}
//	DELETE /v1/channels/{channelID}/overwrites/{overwriteID}
//
// # Middleware layering
//
// The gateway route is mounted directly on the root router, ahead of the
// instrumented /v1 subrouter: the metrics middleware's response writer
// does not implement http.Hijacker, and the websocket upgrade needs it.
// Everything else runs behind request IDs, logging, recovery, metrics,
// bearer auth, and rate limiting, in that order.
//
// # Usage Example
//
//	srv := api.NewServer(api.Options{
//		Store:    store,
//		Resolver: permissions.NewResolver(store),
//		Registry: registry,
//		Gateway:  gateway,
//		Cache:    redisClient,
//		Auth:     middleware.NewAuthMiddleware(verifier, true),
//		Log:      log,
//		Metrics:  metrics,
//	})
//	http.ListenAndServe(":8080", srv.Handler())
//
// # Related Packages
//
//   - pkg/permissions: resolver and store the handlers consult
//   - pkg/hub: gateway and registry fan-out
//   - pkg/middleware: auth and rate limiting
package api
