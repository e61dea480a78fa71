// Package offline implements a durable offline action queue and
// synchronization engine for client applications that mutate a remote
// document store and must keep working through connectivity loss.
//
// Mutations attempted while offline (or failing with a transient network
// error) are recorded as Actions in a durable log and replayed against the
// backend once connectivity returns. An orchestrator watches connectivity,
// schedules replay passes and trips a circuit breaker when the log grows
// beyond a safety threshold.
package offline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	queueErrors "github.com/c0deZ3R0/go-offline-kit/errors"
)

// SchemaVersion is the current version tag stamped on persisted actions.
// Version 0 records (written before the tag existed) are still accepted;
// records from a future version are dropped at load time.
const SchemaVersion = 1

// Kind identifies the remote mutation an Action performs.
type Kind string

const (
	KindCreate Kind = "create"
	KindJoin   Kind = "join"
	KindLeave  Kind = "leave"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Action is a recorded intent to perform one remote mutation, pending
// execution. Actions are created when a mutation is attempted while offline
// or fails with a transient error, and removed when replay succeeds, when
// pruning identifies them as stale, or on a full reset.
type Action struct {
	ID            string                 `json:"id"`
	Kind          Kind                   `json:"kind"`
	EventID       string                 `json:"event_id,omitempty"`
	UserID        string                 `json:"user_id,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	EnqueuedAt    time.Time              `json:"enqueued_at"`
	Attempts      int                    `json:"attempts"`
	SchemaVersion int                    `json:"schema_version"`
}

// NewAction builds an Action with a fresh ID, the current timestamp and the
// current schema version. It does not validate; Append does.
func NewAction(kind Kind, eventID, userID string, payload map[string]interface{}) Action {
	return Action{
		ID:            uuid.NewString(),
		Kind:          kind,
		EventID:       eventID,
		UserID:        userID,
		Payload:       payload,
		EnqueuedAt:    time.Now(),
		SchemaVersion: SchemaVersion,
	}
}

// Validate checks the per-kind shape invariants. Malformed actions must
// never reach the persisted log.
func (a Action) Validate() error {
	switch a.Kind {
	case KindCreate:
		if len(a.Payload) == 0 {
			return queueErrors.NewValidationError(queueErrors.OpCreate, fmt.Errorf("create action requires a payload"))
		}
		if a.EventID != "" {
			return queueErrors.NewValidationError(queueErrors.OpCreate, fmt.Errorf("create action must not carry an event id"))
		}
	case KindJoin, KindLeave:
		if a.EventID == "" || a.UserID == "" {
			return queueErrors.NewValidationError(queueErrors.Operation(a.Kind), fmt.Errorf("%s action requires event id and user id", a.Kind))
		}
	case KindUpdate:
		if a.EventID == "" {
			return queueErrors.NewValidationError(queueErrors.OpUpdate, fmt.Errorf("update action requires an event id"))
		}
		if len(a.Payload) == 0 {
			return queueErrors.NewValidationError(queueErrors.OpUpdate, fmt.Errorf("update action requires a payload"))
		}
	case KindDelete:
		if a.EventID == "" {
			return queueErrors.NewValidationError(queueErrors.OpDelete, fmt.Errorf("delete action requires an event id"))
		}
	default:
		return queueErrors.NewValidationError(queueErrors.OpSync, fmt.Errorf("unknown action kind %q", a.Kind))
	}

	if a.SchemaVersion > SchemaVersion {
		return queueErrors.NewValidationError(queueErrors.OpLoad, fmt.Errorf("unsupported schema version %d", a.SchemaVersion))
	}

	return nil
}

// OlderThan reports whether the action was enqueued before now minus maxAge.
func (a Action) OlderThan(now time.Time, maxAge time.Duration) bool {
	return a.EnqueuedAt.Before(now.Add(-maxAge))
}
