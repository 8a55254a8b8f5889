// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Overview
//
// This package implements request processing middleware: bearer token
// authentication and Redis-backed distributed rate limiting with a
// local token-bucket backstop.
//
// # Middleware Components
//
// AuthMiddleware: Token-based authentication
//
//	authMW := middleware.NewAuthMiddleware(verifier, false)
//	router.Use(authMW.Handler)
//	// Extracts Bearer token, verifies it, adds *auth.Identity to request context
//
// DistributedRateLimitMiddleware: Redis-backed rate limiting shared
// across instances. When Redis is unreachable it degrades to a local
// per-instance RateLimiter instead of dropping traffic.
//
//	drlMW := middleware.NewDistributedRateLimitMiddleware(redisClient)
//	router.Use(drlMW.Handler)
//	gatewayRoute.Handler(drlMW.GatewayHandler(gateway))
//
// # Rate Limiting
//
// Default (Anonymous): 100 req/min, 10 burst
// Per-User: 1000 req/min, 50 burst
// Gateway handshakes: 30 req/min, 5 burst, keyed by client IP
//
// # Related Packages
//
//   - pkg/auth: Token verification
//   - pkg/permissions: Server and channel permission checks
package middleware
