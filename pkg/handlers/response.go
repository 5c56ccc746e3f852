package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"accesos/pkg/claims"
)

const (
	typeError  string = "error"
	typeDetail string = "detail"
)

func DecodeJSONBody(w http.ResponseWriter, r *http.Request, req any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		writeError(w, http.StatusBadRequest, typeError, "invalid Content-Type")
		return false
	}

	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, typeError, "bad json")
		return false
	}

	return true
}

func WriteResp(w http.ResponseWriter, logger *slog.Logger, body any, status int) bool {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write JSON response", slog.Any("err", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, data any) bool {
	resp, err := json.Marshal(data)
	if err != nil {
		logger.Error("Failed to serialize JSON response", "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "failed json marshal")
		return false
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(resp); err != nil {
		logger.Error("Failed to write response to client", "error", err)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, field, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{field: msg}); err != nil {
		return
	}
}

func getClaimsFromContext(w http.ResponseWriter, r *http.Request) (*claims.Claims, bool) {
	val, ok := r.Context().Value(claims.TokenContextKey).(*claims.Claims)
	if !ok || val == nil || val.Subject == "" {
		writeError(w, http.StatusUnauthorized, typeDetail, "No se pudieron validar las credenciales")
		return nil, false
	}
	return val, true
}

// EmptyList answers every API path the development backend does not model.
func EmptyList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte("[]"))
}
