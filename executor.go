package offline

import "context"

// Executor performs one concrete mutation kind against the backend. It has
// no offline awareness of its own: it either succeeds or returns an error.
//
// Errors should be classified through the errors package so the queue can
// tell transient network failures (enqueue and retry) from terminal ones
// (surface to the caller, never retried).
type Executor interface {
	// Create stores a new event document and returns its remote identifier.
	Create(ctx context.Context, payload map[string]interface{}) (string, error)

	// Join adds userID to the event's participant set. Adding an already
	// present member is a no-op, not an error.
	Join(ctx context.Context, eventID, userID string) error

	// Leave removes userID from the event's participant set. Removing an
	// absent member is a no-op.
	Leave(ctx context.Context, eventID, userID string) error

	// Update merges the given fields into the existing remote document.
	Update(ctx context.Context, eventID string, payload map[string]interface{}) error

	// Delete removes the remote document. Callers replaying a queued delete
	// treat a NOT_FOUND result as success, since the end state is achieved.
	Delete(ctx context.Context, eventID string) error
}

// ParticipantsField is the event document field holding the participant
// set that Join and Leave mutate.
const ParticipantsField = "participantsList"
