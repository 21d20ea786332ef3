package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/requesttrace"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
)

// RequestTrace populates the context with request-scoped AuditInfo so services can stamp audit log lines.
// It must run after the authentication middleware so credentials are available when present.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())

		audit := requesttrace.Anonymous(requestID)
		if creds, ok := platformauth.UserFromContext(r.Context()); ok {
			var err error
			audit, err = requesttrace.FromCredentials(creds, requestID)
			if err != nil {
				respond.Error(w, r, nil, "requestTrace", apperr.ErrAuthentication)
				return
			}
		}

		ctx := requesttrace.IntoContext(r.Context(), audit)
		ctx = platformlogging.Enrich(ctx, audit.Fields()...)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
