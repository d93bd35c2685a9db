// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are set by transport middleware and consumed by services. By
// keeping this package free of net/http dependencies, services import
// only what they need.
//
// Usage in services (read values):
//
//	userID := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey          struct{}
	permissionClassKey struct{}
	requestIDKey       struct{}
	requestTimeKey     struct{}
)

var (
	ctxKeyUserID          = userIDKey{}
	ctxKeyPermissionClass = permissionClassKey{}
	ctxKeyRequestID       = requestIDKey{}
	ctxKeyRequestTime     = requestTimeKey{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns "" if the request did not pass the authorization gate.
func UserID(ctx context.Context) string {
	if userID, ok := ctx.Value(ctxKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// WithUserID injects the authenticated user ID into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// PermissionClass retrieves the authenticated user's permission class.
func PermissionClass(ctx context.Context) string {
	if class, ok := ctx.Value(ctxKeyPermissionClass).(string); ok {
		return class
	}
	return ""
}

// WithPermissionClass injects the user's permission class into the context.
func WithPermissionClass(ctx context.Context, class string) context.Context {
	return context.WithValue(ctx, ctxKeyPermissionClass, class)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ctxKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context so a logical operation
// observes one consistent timestamp, and so tests control the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyRequestTime, t)
}
