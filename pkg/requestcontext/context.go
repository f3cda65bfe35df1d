// Package requestcontext carries request-scoped values (actor, client
// metadata, request id, request time) through context.Context so services can
// read them without importing net/http. Middleware writes them; tests inject
// them directly with the With* helpers.
package requestcontext

import (
	"context"
	"time"

	"boxinator/pkg/domain"
)

type key int

const (
	keyActor key = iota
	keyClientIP
	keyUserAgent
	keyRequestID
	keyRequestTime
)

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

func stringValue(ctx context.Context, k key) string {
	s, _ := value[string](ctx, k)
	return s
}

// Actor returns the caller. Without a resolved identity the caller is a guest.
func Actor(ctx context.Context) domain.Actor {
	if a, ok := value[domain.Actor](ctx, keyActor); ok {
		return a
	}
	return domain.Guest()
}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, keyActor, actor)
}

// ClientIP and UserAgent are recorded on admin actions.
func ClientIP(ctx context.Context) string  { return stringValue(ctx, keyClientIP) }
func UserAgent(ctx context.Context) string { return stringValue(ctx, keyUserAgent) }

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func RequestID(ctx context.Context) string { return stringValue(ctx, keyRequestID) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now is the time pinned for the current request, or the wall clock outside
// one (the notification dispatcher, tests without WithTime).
func Now(ctx context.Context) time.Time {
	if t, ok := value[time.Time](ctx, keyRequestTime); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
