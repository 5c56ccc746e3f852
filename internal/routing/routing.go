package routing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"accesos/internal/metrics"
	"accesos/pkg/auth"
	"accesos/pkg/handlers"
	"accesos/pkg/middleware"
	"accesos/pkg/role"
	"accesos/pkg/session"
	"accesos/pkg/validator"
)

// View is a protected console page backed by one API listing.
type View struct {
	Path      string
	APIPath   string
	Threshold int
}

// Views lists the console pages. Threshold 0 means any authenticated user.
var Views = []View{
	{Path: auth.LandingPath, APIPath: "/visitas/"},
	{Path: "/personas", APIPath: "/personas/", Threshold: role.Operator},
	{Path: "/usuarios", APIPath: "/usuarios/", Threshold: role.Admin},
	{Path: "/auditoria", APIPath: "/audit/", Threshold: role.Auditor},
}

func InitConsoleRoutes(r *mux.Router, h *handlers.ConsoleHandler, sess middleware.Session, m *metrics.Recorder) {
	r.Use(middleware.Panic(h.Logger))

	/* session routes */
	r.HandleFunc(auth.LoginPath, h.LoginPage).Methods("GET").Name("login-page")
	r.HandleFunc(auth.LoginPath, h.Login).Methods("POST").Name("login")
	r.HandleFunc("/logout", h.Logout).Methods("POST").Name("logout")
	r.HandleFunc("/session", h.Status).Methods("GET").Name("session")
	r.Handle("/metrics", m.Handler()).Methods("GET")

	/* protected views */
	for _, v := range Views {
		guard := middleware.RequireSession(sess)
		if v.Threshold > 0 {
			guard = middleware.RequireRole(sess, v.Threshold)
		}
		r.Handle(v.Path, guard(h.Proxy(v.APIPath))).Methods("GET")
	}

	r.Handle("/", http.RedirectHandler(auth.LandingPath, http.StatusFound))
}

func InitStubRoutes(api *mux.Router, userHandler *handlers.Handler, v *validator.Validator, sessions session.Repository, logger *slog.Logger) {
	api.Use(middleware.Panic(logger))
	api.Use(middleware.CheckJWT(v, sessions, logger))

	authRouter := api.PathPrefix("/auth").Subrouter()

	/* auth routers */
	authRouter.HandleFunc("/login", userHandler.Login).Methods("POST").Name("login")
	authRouter.HandleFunc("/login-json", userHandler.Login).Methods("POST").Name("login-json")
	authRouter.HandleFunc("/me", userHandler.Me).Methods("GET").Name("me")
	authRouter.HandleFunc("/logout", userHandler.Logout).Methods("POST").Name("logout")

	ServeFallback(api, logger)
}

func ServeFallback(r *mux.Router, logger *slog.Logger) {
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			handlers.EmptyList(w, r)
			return
		}
		logger.Debug("no route", "path", r.URL.Path)
		http.NotFound(w, r)
	})
}

// StartServer serves r on addr until ctx is cancelled.
func StartServer(ctx context.Context, addr string, r http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("The server is running", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
