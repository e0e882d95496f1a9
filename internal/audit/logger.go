package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	ActorID      string            `json:"actor_id"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Status       string            `json:"status"` // "success" or "failure"
	Details      map[string]string `json:"details,omitempty"`
}

// Store persists audit entries. Persistence failures are logged and
// swallowed; auditing never fails the operation it records.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Reader lists recorded entries for admin inspection, newest first.
type Reader interface {
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Logger records admin and workflow decisions, both to the structured
// log and, when a store is attached, to the audit table.
type Logger struct {
	logger zerolog.Logger
	store  Store
}

func NewLogger(logger zerolog.Logger, store Store) *Logger {
	return &Logger{
		logger: logger.With().Str("component", "audit").Logger(),
		store:  store,
	}
}

func (l *Logger) Log(ctx context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	event := l.logger.Info().
		Str("action", entry.Action).
		Str("actor_id", entry.ActorID).
		Str("status", entry.Status)
	if entry.ResourceType != "" {
		event = event.Str("resource_type", entry.ResourceType).Str("resource_id", entry.ResourceID)
	}
	for key, value := range entry.Details {
		event = event.Str(key, value)
	}
	event.Msg("audit")

	if l.store != nil {
		if err := l.store.Append(ctx, entry); err != nil {
			l.logger.Error().Err(err).Str("action", entry.Action).Msg("failed to persist audit entry")
		}
	}
}

// LogSuccess records a completed operation against a resource.
func (l *Logger) LogSuccess(ctx context.Context, action, actorID, resourceType, resourceID string, details map[string]string) {
	l.Log(ctx, Entry{
		Action:       action,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Status:       "success",
		Details:      details,
	})
}

// LogFailure records a rejected or failed operation.
func (l *Logger) LogFailure(ctx context.Context, action, actorID string, details map[string]string) {
	l.Log(ctx, Entry{
		Action:  action,
		ActorID: actorID,
		Status:  "failure",
		Details: details,
	})
}
