package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"accesos/pkg/auth"
	"accesos/pkg/backend"
	"accesos/pkg/claims"
	"accesos/pkg/role"
)

type ConsoleSession interface {
	Login(ctx context.Context, username, password string) auth.Result
	Logout(ctx context.Context)
	State() auth.State
	IsAuthenticated() bool
	HasPermission(threshold int) bool
	RoleID() (int, bool)
	RoleName() string
	User() (claims.User, bool)
	backend.TokenSource
}

type Fetcher interface {
	Fetch(ctx context.Context, src backend.TokenSource, method, path string, body io.Reader) (*http.Response, error)
}

// ConsoleHandler serves the operator console on top of a single session.
type ConsoleHandler struct {
	Session ConsoleSession
	API     Fetcher
	Logger  *slog.Logger
}

func NewConsoleHandler(sess ConsoleSession, api Fetcher, logger *slog.Logger) *ConsoleHandler {
	return &ConsoleHandler{
		Session: sess,
		API:     api,
		Logger:  logger,
	}
}

type sessionView struct {
	State         string             `json:"state"`
	Authenticated bool               `json:"authenticated"`
	User          *claims.User       `json:"user,omitempty"`
	Role          string             `json:"role"`
	Capabilities  *role.Capabilities `json:"capabilities,omitempty"`
}

func (h *ConsoleHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.Session.IsAuthenticated() {
		http.Redirect(w, r, auth.LandingPath, http.StatusFound)
		return
	}
	writeJSON(w, h.Logger, map[string]string{
		"state":   h.Session.State().String(),
		"message": "Inicie sesión con su usuario y contraseña",
	})
}

func (h *ConsoleHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginForm
	if ok := DecodeJSONBody(w, r, &req); !ok {
		return
	}

	res := h.Session.Login(r.Context(), req.Username, req.Password)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnauthorized
	}
	WriteResp(w, h.Logger, res, status)
}

func (h *ConsoleHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Session.Logout(r.Context())
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (h *ConsoleHandler) Status(w http.ResponseWriter, r *http.Request) {
	view := sessionView{
		State:         h.Session.State().String(),
		Authenticated: h.Session.IsAuthenticated(),
		Role:          h.Session.RoleName(),
	}
	if u, ok := h.Session.User(); ok {
		view.User = &u
		caps := role.CapabilitiesOf(h.Session)
		view.Capabilities = &caps
	}
	writeJSON(w, h.Logger, view)
}

// Proxy relays a protected API listing with the session token. The answer
// is passed through untouched; a rejected token ends at the login page.
func (h *ConsoleHandler) Proxy(apiPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := apiPath
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}

		resp, err := h.API.Fetch(r.Context(), h.Session, http.MethodGet, path, nil)
		switch {
		case errors.Is(err, backend.ErrUnauthorized):
			http.Redirect(w, r, auth.LoginPath, http.StatusFound)
			return
		case errors.Is(err, backend.ErrNetwork):
			h.Logger.Warn("api unreachable", "path", apiPath, "error", err)
			writeError(w, http.StatusBadGateway, typeDetail, auth.MsgNetwork)
			return
		case err != nil:
			h.Logger.Error("api request", "path", apiPath, "error", err)
			writeError(w, http.StatusInternalServerError, typeDetail, msgInternal)
			return
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			h.Logger.Error("relay response", "path", apiPath, "error", err)
		}
	}
}
