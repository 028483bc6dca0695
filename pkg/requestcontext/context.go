// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and recorders consume them without
// importing net/http. Tests inject them directly:
//
//	ctx = requestcontext.WithIdentity(ctx, &requestcontext.Identity{UserID: "..."})
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Identity is the authenticated caller, populated by the authentication
// middleware. A nil Identity means the request is unauthenticated.
type Identity struct {
	UserID  string
	IsAdmin bool
}

// Context key types (unexported for encapsulation).
type (
	identityKey    struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	cachedBodyKey  struct{}
)

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// GetIdentity retrieves the authenticated identity, or nil if unauthenticated.
func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// WithIdentity injects an authenticated identity into the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// -----------------------------------------------------------------------------
// Cached request body
// -----------------------------------------------------------------------------

// CachedBody retrieves the request body captured once by the activity
// recorder's pre-capture step. Both the audit classifier and the business
// handler consume this copy; the raw body is never read twice.
func CachedBody(ctx context.Context) ([]byte, bool) {
	b, ok := ctx.Value(cachedBodyKey{}).([]byte)
	return b, ok
}

// WithCachedBody stores the captured request body in the context.
func WithCachedBody(ctx context.Context, body []byte) context.Context {
	return context.WithValue(ctx, cachedBodyKey{}, body)
}
