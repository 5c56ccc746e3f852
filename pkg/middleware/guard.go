package middleware

import (
	"net/http"

	"accesos/pkg/auth"
)

type Session interface {
	State() auth.State
	IsAuthenticated() bool
	HasPermission(threshold int) bool
}

// RequireSession lets any authenticated user through.
func RequireSession(sess Session) func(http.Handler) http.Handler {
	return guard(sess, 0, false)
}

// RequireRole also demands HasPermission(threshold). A user that is logged
// in but lacks the role is sent to the landing page, not to the login.
func RequireRole(sess Session, threshold int) func(http.Handler) http.Handler {
	return guard(sess, threshold, true)
}

func guard(sess Session, threshold int, checkRole bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess.State() == auth.Initializing {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("Cargando..."))
				return
			}

			if !sess.IsAuthenticated() {
				http.Redirect(w, r, auth.LoginPath, http.StatusFound)
				return
			}

			if checkRole && !sess.HasPermission(threshold) {
				http.Redirect(w, r, auth.LandingPath, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
