package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront-api/internal/httpx"
)

type Middleware struct {
	authenticator *Authenticator
	logger        *slog.Logger
}

func NewMiddleware(authenticator *Authenticator, logger *slog.Logger) *Middleware {
	return &Middleware{authenticator: authenticator, logger: logger}
}

// Require rejects requests without a valid bearer token.
func (m *Middleware) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.authenticator.Authenticate(bearer(r))
		if err != nil {
			m.logger.Debug("authentication failed", "error", err, "path", r.URL.Path)
			httpx.WriteError(w, m.logger, err)
			return
		}
		next(w, r.WithContext(WithIdentity(r.Context(), identity)))
	}
}

// Optional attaches an identity when a valid token is present and never fails.
func (m *Middleware) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := bearer(r); token != "" {
			if identity, err := m.authenticator.Authenticate(token); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), identity))
			}
		}
		next(w, r)
	}
}

// RequireRole authenticates and then checks the role.
func (m *Middleware) RequireRole(next http.HandlerFunc, roles ...Role) http.HandlerFunc {
	return m.Require(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := FromContext(r.Context())
		if err := RequireRole(identity, roles...); err != nil {
			m.logger.Info("role check failed", "user_id", identity.ID, "role", identity.Role, "path", r.URL.Path)
			httpx.WriteError(w, m.logger, err)
			return
		}
		next(w, r)
	})
}

func bearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
