package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"accesos/pkg/claims"
	"accesos/pkg/session"
	"accesos/pkg/validator"

	"github.com/gorilla/mux"
)

const (
	loginTemplate     = "/api/v1/auth/login"
	loginJSONTemplate = "/api/v1/auth/login-json"
)

var (
	noSessUrls = map[string]string{
		loginTemplate:     http.MethodPost,
		loginJSONTemplate: http.MethodPost,
	}
)

// CheckJWT guards the development auth backend. Besides the signature and
// expiry it looks up the session named by the token's jti, so a logout on
// the server side revokes that token while it is still unexpired.
func CheckJWT(v *validator.Validator, sessions session.Repository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if route := mux.CurrentRoute(r); route != nil {
				if template, err := route.GetPathTemplate(); err == nil {
					if method, ok := noSessUrls[template]; ok && method == r.Method {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				unauthorized(w, "missing bearer token")
				return
			}

			token := strings.TrimPrefix(auth, "Bearer ")
			if err := v.Check(token); err != nil {
				logger.Info("rejected token", "path", r.URL.Path, "error", err)
				unauthorized(w, "No se pudieron validar las credenciales")
				return
			}

			c, err := v.Decode(token)
			if err != nil || c.Subject == "" {
				unauthorized(w, "No se pudieron validar las credenciales")
				return
			}

			if c.SessionID() == "" {
				unauthorized(w, "No se pudieron validar las credenciales")
				return
			}

			ok, err := sessions.IsValid(r.Context(), c.SessionID())
			if err != nil || !ok {
				logger.Info("no active session", "user", c.UserID, "session", c.SessionID(), "error", err)
				unauthorized(w, "No se pudieron validar las credenciales")
				return
			}

			ctx := context.WithValue(r.Context(), claims.TokenContextKey, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
