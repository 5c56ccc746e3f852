// Package backend talks to the REST services the console depends on: the
// authentication endpoint and every protected resource behind it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// MsgLoginFailed is shown when a rejected login carries no usable reason.
const MsgLoginFailed = "Error al iniciar sesión"

var (
	ErrNetwork      = errors.New("backend unreachable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoToken      = errors.New("no token in login response")
)

// RejectedError is a non-success answer of the authentication endpoint.
type RejectedError struct {
	Status int
	Detail string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("login rejected (%d): %s", e.Status, e.Detail)
}

// TokenSource is what a protected fetch needs from the session owner.
type TokenSource interface {
	Token() (string, bool)
	ReportUnauthorized(ctx context.Context)
}

type Client struct {
	AuthBaseURL string
	APIBaseURL  string
	HTTP        *http.Client
	Logger      *slog.Logger
}

func NewClient(authBaseURL, apiBaseURL string, logger *slog.Logger) *Client {
	return &Client{
		AuthBaseURL: strings.TrimRight(authBaseURL, "/"),
		APIBaseURL:  strings.TrimRight(apiBaseURL, "/"),
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		Logger:      logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AuthBaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RejectedError{
			Status: resp.StatusCode,
			Detail: errorDetail(resp.StatusCode, data),
		}
	}

	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return "", fmt.Errorf("bad login response: %w", err)
	}
	if lr.AccessToken == "" {
		return "", ErrNoToken
	}
	return lr.AccessToken, nil
}

// Fetch performs an authenticated call against the API. A 401 answer is
// reported to src and returned as ErrUnauthorized; it is never retried.
// Without a usable token no request is made.
// The caller closes the body of a successful response.
func (c *Client) Fetch(ctx context.Context, src TokenSource, method, path string, body io.Reader) (*http.Response, error) {
	token, ok := src.Token()
	if !ok {
		return nil, ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.Logger.Warn("api rejected token", "method", method, "path", path)
		src.ReportUnauthorized(ctx)
		return nil, ErrUnauthorized
	}
	return resp, nil
}

// errorDetail pulls a display message out of the error bodies the backend
// is known to send: {"detail": "..."}, {"detail": [{"msg": "..."}]},
// {"error": "..."}, {"error": {"message": "..."}} and {"message": "..."}.
// A body with none of these keeps MsgLoginFailed; a reason that is present
// but empty falls back to the status line.
func errorDetail(status int, data []byte) string {
	msg := MsgLoginFailed

	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err == nil {
		if raw, ok := body["detail"]; ok {
			msg = detailMessage(raw)
		} else if raw, ok := body["error"]; ok {
			msg = errorMessage(raw)
		} else if raw, ok := body["message"]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				msg = s
			}
		}
	}

	if msg == "" {
		text := http.StatusText(status)
		if text == "" {
			text = "No autorizado"
		}
		msg = fmt.Sprintf("Error %d: %s", status, text)
	}
	return msg
}

func errorMessage(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func detailMessage(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var items []json.RawMessage
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			var withMsg struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(item, &withMsg) == nil && withMsg.Msg != "" {
				msgs = append(msgs, withMsg.Msg)
				continue
			}
			var plain string
			if json.Unmarshal(item, &plain) == nil {
				msgs = append(msgs, plain)
				continue
			}
			msgs = append(msgs, string(item))
		}
		return strings.Join(msgs, "; ")
	}

	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
