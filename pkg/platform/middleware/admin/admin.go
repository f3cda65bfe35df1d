package admin

import (
	"log/slog"
	"net/http"

	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/httputil"
	request "boxinator/pkg/platform/middleware/request"
	"boxinator/pkg/requestcontext"
)

// RequireAdministrator guards the /admin surface. Guests get 401 and
// authenticated non-administrators get 403. Services re-check the role; this
// only keeps unauthorized traffic off the admin handlers.
func RequireAdministrator(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := requestcontext.Actor(ctx)
			if actor.IsGuest() {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !actor.IsAdmin() {
				logger.WarnContext(ctx, "admin route denied",
					"user_id", actor.ID.String(),
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "administrator role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
