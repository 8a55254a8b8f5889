// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage
// discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/AstromanXD/Astricord-sub001/pkg/contextkeys"
//	ctx = contextkeys.WithIdentity(ctx, ident)
//	ident, ok := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions.
type Key string

const (
	// IdentityKey contains *auth.Identity.
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: protected API endpoints, permission middleware
	IdentityKey Key = "identity"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, distributed tracing
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger.
	// Set by: observability middleware
	// Used by: handlers that log with request context
	LoggerKey Key = "logger"
)

// WithIdentity adds the authenticated identity to the context.
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithRequestID adds the request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
