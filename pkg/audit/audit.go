package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	SessionRestored Kind = "session_restored"
	LoginSucceeded  Kind = "login_succeeded"
	LoginFailed     Kind = "login_failed"
	Logout          Kind = "logout"
	ForcedLogout    Kind = "forced_logout"
	SessionExpired  Kind = "session_expired"
)

type Event struct {
	ID       string    `json:"id" bson:"id"`
	Kind     Kind      `json:"kind" bson:"kind"`
	UserID   int64     `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Username string    `json:"username,omitempty" bson:"username,omitempty"`
	Reason   string    `json:"reason,omitempty" bson:"reason,omitempty"`
	At       time.Time `json:"at" bson:"at"`
}

func NewEvent(kind Kind, userID int64, username, reason string) Event {
	return Event{
		ID:       uuid.NewString(),
		Kind:     kind,
		UserID:   userID,
		Username: username,
		Reason:   reason,
		At:       time.Now().UTC(),
	}
}

type Recorder interface {
	Record(ctx context.Context, e Event) error
}

type LogRecorder struct {
	Logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{Logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, e Event) error {
	r.Logger.InfoContext(ctx, "session event",
		"kind", e.Kind,
		"user", e.UserID,
		"username", e.Username,
		"reason", e.Reason,
		"event_id", e.ID,
	)
	return nil
}

type multi []Recorder

// Multi fans an event out to every recorder and joins their errors.
func Multi(recorders ...Recorder) Recorder {
	return multi(recorders)
}

func (m multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
