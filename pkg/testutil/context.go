package testutil

import (
	"net/http"
	"time"

	"boxinator/pkg/domain"
	"boxinator/pkg/requestcontext"
)

// WithActor attaches an identity to req as the auth middleware would.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithRequestTime pins the request clock, as metadata.RequestTime would.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
