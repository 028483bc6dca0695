package testutil

import (
	"net/http"
	"time"

	"sentra/pkg/requestcontext"
)

// WithIdentity marks the request as authenticated, simulating what the
// auth middleware would populate.
func WithIdentity(req *http.Request, userID string, isAdmin bool) *http.Request {
	ctx := requestcontext.WithIdentity(req.Context(), &requestcontext.Identity{
		UserID:  userID,
		IsAdmin: isAdmin,
	})
	return req.WithContext(ctx)
}

// WithClientMetadata pins the client IP and user-agent the metadata
// middleware would extract.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent)
	return req.WithContext(ctx)
}

// WithCachedBody places a pre-captured body in the request context.
func WithCachedBody(req *http.Request, body []byte) *http.Request {
	return req.WithContext(requestcontext.WithCachedBody(req.Context(), body))
}

// WithTime pins the request-scoped clock, letting tests control window
// arithmetic deterministically.
func WithTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
