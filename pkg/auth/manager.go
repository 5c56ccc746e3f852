// Package auth owns the console session: it logs in against the backend,
// keeps the token and the user derived from it, answers permission checks
// and drops the session on logout, expiry or a backend 401.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"accesos/pkg/audit"
	"accesos/pkg/backend"
	"accesos/pkg/claims"
	"accesos/pkg/role"
	"accesos/pkg/tokenstore"
	"accesos/pkg/validator"
)

type State int

const (
	Initializing State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

const (
	LoginPath   = "/login"
	LandingPath = "/accesos"
)

// Messages shown next to the login form.
const (
	MsgMissingCredentials = "Usuario y contraseña son requeridos"
	MsgNetwork            = "No se pudo conectar con el servidor"
	MsgLoginFailed        = backend.MsgLoginFailed
	MsgInvalidRole        = "Rol no válido en el token"
	MsgInvalidToken       = "Token inválido recibido del servidor"
	MsgSuperseded         = "Inicio de sesión cancelado"
)

var (
	ErrNoAuthenticator = errors.New("auth: authenticator is required")
	ErrNoStore         = errors.New("auth: token store is required")
)

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type Config struct {
	Authenticator Authenticator
	Store         tokenstore.Store
	Validator     *validator.Validator
	Navigator     Navigator
	Recorder      audit.Recorder
	Logger        *slog.Logger
}

type Manager struct {
	auth      Authenticator
	store     tokenstore.Store
	validator *validator.Validator
	navigator Navigator
	recorder  audit.Recorder
	logger    *slog.Logger

	mu    sync.Mutex
	state State
	token string
	user  claims.User
	// seq identifies the newest login attempt; anything that ends or
	// replaces a session bumps it so older completions are dropped.
	seq uint64
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Authenticator == nil {
		return nil, ErrNoAuthenticator
	}
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Navigator == nil {
		cfg.Navigator = NavigatorFunc(func(string) {})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		auth:      cfg.Authenticator,
		store:     cfg.Store,
		validator: cfg.Validator,
		navigator: cfg.Navigator,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		state:     Initializing,
	}, nil
}

// effects are applied after the lock is released so a navigator or a
// recorder may call back into the manager.
type effects struct {
	event    *audit.Event
	navigate string
}

func (m *Manager) apply(ctx context.Context, fx effects) {
	if fx.event != nil && m.recorder != nil {
		if err := m.recorder.Record(ctx, *fx.event); err != nil {
			m.logger.Error("session event", "kind", fx.event.Kind, "error", err)
		}
	}
	if fx.navigate != "" {
		m.navigator.Navigate(fx.navigate)
	}
}

// Init rehydrates the session from the store. It only acts while the
// manager is still Initializing.
func (m *Manager) Init(ctx context.Context) State {
	entry, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("load session", "error", err)
		entry = nil
	}

	m.mu.Lock()
	if m.state != Initializing {
		state := m.state
		m.mu.Unlock()
		return state
	}

	var fx effects
	user, reason := m.restoreLocked(entry)
	if reason == "" {
		m.state = Authenticated
		m.token = entry.Token
		m.user = user
		fx.event = eventFor(audit.SessionRestored, user, "")
	} else {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Error("clear session", "error", err)
		}
		m.state = Anonymous
		if entry != nil {
			fx.event = eventFor(audit.SessionExpired, entry.User, reason)
		}
	}
	state := m.state
	m.mu.Unlock()

	m.apply(ctx, fx)
	m.logger.Info("session initialized", "state", state)
	return state
}

// restoreLocked returns the user of a stored entry, or a non-empty reason
// why the entry cannot be used. Identity always comes from the token.
func (m *Manager) restoreLocked(entry *tokenstore.Entry) (claims.User, string) {
	if entry == nil {
		return claims.User{}, "no stored session"
	}
	if err := m.validator.Check(entry.Token); err != nil {
		return claims.User{}, err.Error()
	}
	c, err := m.validator.Decode(entry.Token)
	if err != nil {
		return claims.User{}, err.Error()
	}
	user, err := c.User()
	if err != nil {
		return claims.User{}, err.Error()
	}
	if user != entry.User {
		m.logger.Debug("stored user differs from token claims", "user", user.ID)
	}
	return user, ""
}

func (m *Manager) Login(ctx context.Context, username, password string) Result {
	if strings.TrimSpace(username) == "" || password == "" {
		return m.loginFailed(ctx, username, MsgMissingCredentials)
	}

	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	token, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Warn("login", "user", username, "error", err)
		return m.loginFailed(ctx, username, loginMessage(err))
	}

	c, err := m.validator.Decode(token)
	if err != nil {
		m.logger.Warn("login token", "user", username, "error", err)
		return m.loginFailed(ctx, username, MsgInvalidToken)
	}
	user, err := c.User()
	if err != nil {
		return m.loginFailed(ctx, username, MsgInvalidRole)
	}
	if err := m.validator.Check(token); err != nil {
		m.logger.Warn("login token", "user", username, "error", err)
		return m.loginFailed(ctx, username, MsgInvalidToken)
	}

	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		m.logger.Info("stale login dropped", "user", username)
		return m.loginFailed(ctx, username, MsgSuperseded)
	}
	if err := m.store.Save(ctx, token, user); err != nil {
		m.mu.Unlock()
		m.logger.Error("save session", "user", username, "error", err)
		return m.loginFailed(ctx, username, MsgLoginFailed)
	}
	m.state = Authenticated
	m.token = token
	m.user = user
	m.mu.Unlock()

	m.apply(ctx, effects{
		event:    eventFor(audit.LoginSucceeded, user, ""),
		navigate: LandingPath,
	})
	return Result{Success: true}
}

func (m *Manager) loginFailed(ctx context.Context, username, msg string) Result {
	m.apply(ctx, effects{
		event: eventFor(audit.LoginFailed, claims.User{Username: username}, msg),
	})
	return Result{Success: false, Message: msg}
}

func loginMessage(err error) string {
	var rejected *backend.RejectedError
	switch {
	case errors.As(err, &rejected):
		return rejected.Detail
	case errors.Is(err, backend.ErrNetwork):
		return MsgNetwork
	}
	return MsgLoginFailed
}

func (m *Manager) Logout(ctx context.Context) {
	m.end(ctx, audit.Logout, "")
}

// ReportUnauthorized is called by protected fetches that got a 401. The
// backend has the last word on a token, so this is a logout.
func (m *Manager) ReportUnauthorized(ctx context.Context) {
	m.end(ctx, audit.ForcedLogout, "unauthorized response")
}

func (m *Manager) end(ctx context.Context, kind audit.Kind, reason string) {
	m.mu.Lock()
	fx := m.endLocked(ctx, kind, reason)
	m.mu.Unlock()

	m.apply(ctx, fx)
}

func (m *Manager) endLocked(ctx context.Context, kind audit.Kind, reason string) effects {
	var fx effects
	if m.state == Authenticated {
		fx.event = eventFor(kind, m.user, reason)
	}

	m.seq++
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("clear session", "error", err)
	}
	m.state = Anonymous
	m.token = ""
	m.user = claims.User{}

	fx.navigate = LoginPath
	return fx
}

// current re-validates the token; an expired token found here ends the
// session.
func (m *Manager) current() (string, claims.User, bool) {
	m.mu.Lock()
	if m.state != Authenticated {
		m.mu.Unlock()
		return "", claims.User{}, false
	}

	if err := m.validator.Check(m.token); err != nil {
		ctx := context.Background()
		fx := m.endLocked(ctx, audit.SessionExpired, err.Error())
		m.mu.Unlock()
		m.apply(ctx, fx)
		return "", claims.User{}, false
	}

	token, user := m.token, m.user
	m.mu.Unlock()
	return token, user, true
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsAuthenticated() bool {
	_, _, ok := m.current()
	return ok
}

func (m *Manager) HasPermission(threshold int) bool {
	_, user, ok := m.current()
	if !ok {
		return false
	}
	return user.Rol.ID <= threshold
}

func (m *Manager) RoleID() (int, bool) {
	_, user, ok := m.current()
	if !ok {
		return 0, false
	}
	return user.Rol.ID, true
}

func (m *Manager) RoleName() string {
	_, user, ok := m.current()
	if !ok || user.Rol.Name == "" {
		return role.Unknown
	}
	return user.Rol.Name
}

func (m *Manager) User() (claims.User, bool) {
	_, user, ok := m.current()
	return user, ok
}

// Token returns the bearer token for a protected call.
func (m *Manager) Token() (string, bool) {
	token, _, ok := m.current()
	return token, ok
}

func eventFor(kind audit.Kind, u claims.User, reason string) *audit.Event {
	e := audit.NewEvent(kind, u.ID, u.Username, reason)
	return &e
}
