package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/estatedesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/estatedesk/platform/go/logging"
	"github.com/zenGate-Global/estatedesk/platform/go/problem"
	"github.com/zenGate-Global/estatedesk/platform/go/requesttrace"
)

// RequestTrace stores request-scoped AuditInfo so services can stamp created_by, and tags the
// request logger with the actor. It must run after the JWT middleware.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := platformlogging.FromRequest(r, nil)
		requestID := middleware.GetReqID(r.Context())

		audit := requesttrace.Anonymous(requestID)
		if creds, ok := platformauth.UserFromContext(r.Context()); ok {
			var err error
			audit, err = requesttrace.FromCredentials(creds, requestID)
			if err != nil {
				logger.Warn("build audit info from credentials", zap.Error(err))
				problem.Unauthorized(w, "credentials carry no user id")
				return
			}
		}

		fields := []zap.Field{zap.String("actor_kind", string(audit.ActorKind))}
		if audit.UserID != "" {
			fields = append(fields, zap.String("user_id", audit.UserID))
		}

		ctx := requesttrace.IntoContext(r.Context(), audit)
		ctx = platformlogging.WithLogger(ctx, logger.With(fields...))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
