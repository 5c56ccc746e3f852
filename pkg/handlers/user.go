package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"accesos/pkg/claims"
	"accesos/pkg/role"
	"accesos/pkg/user"
)

const (
	msgRequired           = "Usuario y contraseña son requeridos"
	msgUserNotFound       = "Usuario no encontrado"
	msgInvalidCredentials = "Credenciales inválidas"
	msgInternal           = "Error interno del servidor"
)

type LoginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Handler serves the authentication endpoints of the development backend.
type Handler struct {
	Service user.ServiceInterface
	Logger  *slog.Logger
	Key     []byte
	TTL     time.Duration
}

func NewUserHandler(service user.ServiceInterface, logger *slog.Logger, key []byte, ttl time.Duration) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
		Key:     key,
		TTL:     ttl,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginForm
	if ok := DecodeJSONBody(w, r, &req); !ok {
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, typeDetail, msgRequired)
		return
	}

	expires := time.Now().Add(h.TTL)
	u, sessionID, err := h.Service.Login(r.Context(), req.Username, req.Password, expires)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			writeError(w, http.StatusNotFound, typeDetail, msgUserNotFound)
		case errors.Is(err, user.ErrInvalidCredentials):
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, typeDetail, msgInvalidCredentials)
		case errors.Is(err, user.ErrMissingCredentials):
			writeError(w, http.StatusBadRequest, typeDetail, msgRequired)
		default:
			h.Logger.Error("login", "error", err)
			writeError(w, http.StatusInternalServerError, typeDetail, msgInternal)
		}
		h.Logger.Info("login rejected", "user", req.Username, "error", err)
		return
	}

	GenerateToken(w, h.Logger, h.Key, u.Identity(), sessionID, expires)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c, ok := getClaimsFromContext(w, r)
	if !ok {
		return
	}

	u, err := c.User()
	if err != nil {
		writeError(w, http.StatusUnauthorized, typeDetail, "Rol no válido en el token")
		return
	}

	writeJSON(w, h.Logger, map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"rol":        u.Rol,
		"rol_nombre": role.Name(u.Rol.ID),
		"expira":     c.Expiry().UTC(),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	c, ok := getClaimsFromContext(w, r)
	if !ok {
		return
	}

	if err := h.Service.Logout(r.Context(), c.SessionID()); err != nil {
		h.Logger.Error("logout", "user", c.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, typeDetail, msgInternal)
		return
	}

	if ok := writeJSON(w, h.Logger, map[string]string{"message": "Sesión cerrada exitosamente"}); ok {
		h.Logger.Info("logout", "user", c.UserID)
	}
}

func GenerateToken(w http.ResponseWriter, logger *slog.Logger, key []byte, u claims.User, sessionID string, expires time.Time) {
	c := claims.New(u, expires)
	c.Id = sessionID

	tokenString, err := claims.Sign(key, c)
	if err != nil {
		logger.Error("token signing", "error", err)
		writeError(w, http.StatusInternalServerError, typeDetail, msgInternal)
		return
	}

	body := map[string]any{
		"access_token": tokenString,
		"token_type":   "bearer",
		"expires_in":   int64(time.Until(expires).Round(time.Second).Seconds()),
	}
	if ok := WriteResp(w, logger, body, http.StatusOK); ok {
		logger.Info("login", "user", u.ID)
	}
}
