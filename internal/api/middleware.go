package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carwash/pkg/config"
	"carwash/pkg/session"
)

// SessionAuth verifies the bearer session token and attaches the caller identity.
//
// Expected header:
// - Authorization: Bearer <JWT>
func SessionAuth(cfg config.SessionConfig, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session token")
				return
			}
			token := strings.TrimSpace(authz[7:])
			id, err := session.Verify(token, cfg.Audience, cfg.Secret, time.Now())
			if err != nil {
				log.WithError(err).Debug("session token rejected")
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects callers whose session role is not role. Must run after SessionAuth.
func RequireRole(role session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
				return
			}
			if id.Role != role {
				WriteError(w, http.StatusForbidden, "FORBIDDEN", "not allowed for this account type")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
