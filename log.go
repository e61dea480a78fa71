package offline

import (
	"context"
	"sync"
	"time"

	"log/slog"

	queueErrors "github.com/c0deZ3R0/go-offline-kit/errors"
	"github.com/c0deZ3R0/go-offline-kit/logging"
)

// Store is the durable backend behind the action log. Implementations
// persist the whole ordered collection on every write; partial updates are
// not part of the contract so concurrently appended entries within one
// process are never lost to a patch write.
//
// Implementations can use any local storage (JSON file, SQLite, etc.).
type Store interface {
	// Load retrieves the full persisted collection in enqueue order.
	Load(ctx context.Context) ([]Action, error)

	// Save overwrites the full persisted collection.
	Save(ctx context.Context, actions []Action) error

	// Reset clears the persisted collection unconditionally.
	Reset(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ActionLog is the single source of truth for pending mutations across
// restarts. It serializes all access through one mutex; the persisted and
// in-memory representations are reconciled on every operation via full
// read-modify-write cycles against the Store.
//
// Storage failures are swallowed: the log degrades to an empty collection
// rather than propagating an error that would block the caller.
type ActionLog struct {
	mu     sync.Mutex
	store  Store
	logger *logging.Logger
	resets uint64
}

// NewActionLog creates an action log over the given store. A nil logger
// disables logging.
func NewActionLog(store Store, logger *logging.Logger) *ActionLog {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ActionLog{
		store:  store,
		logger: logger.WithComponent("log"),
	}
}

// Load returns the persisted actions, dropping any record that no longer
// validates (corrupt or future-schema entries). Never fails: missing or
// unreadable state yields an empty collection.
func (l *ActionLog) Load(ctx context.Context) []Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// Append validates the action and persists it at the end of the log.
// Malformed actions are dropped silently (logged, not queued).
func (l *ActionLog) Append(ctx context.Context, action Action) {
	if err := action.Validate(); err != nil {
		l.logger.LogError(err, "dropping malformed action",
			slog.String("kind", string(action.Kind)))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	actions := l.load(ctx)
	actions = append(actions, action)
	l.save(ctx, actions)
}

// Save overwrites the persisted collection.
func (l *ActionLog) Save(ctx context.Context, actions []Action) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.save(ctx, actions)
}

// Prune removes entries matching the predicate and reports how many were
// removed. The collection is only rewritten when something was dropped.
func (l *ActionLog) Prune(ctx context.Context, remove func(Action) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	actions := l.load(ctx)
	kept := actions[:0:0]
	for _, a := range actions {
		if !remove(a) {
			kept = append(kept, a)
		}
	}

	pruned := len(actions) - len(kept)
	if pruned > 0 {
		l.save(ctx, kept)
	}
	return pruned
}

// Reset clears the entire collection unconditionally. Used by the circuit
// breaker and manual emergency controls only.
func (l *ActionLog) Reset(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resets++
	if err := l.store.Reset(ctx); err != nil {
		l.logger.LogError(queueErrors.NewStorageError(queueErrors.OpReset, err), "reset failed")
	}
}

// Generation returns a counter incremented by every Reset. A replay pass
// records it before loading and persists through SaveIfFresh, so a reset
// that lands mid-pass cannot be undone by the pass's final write.
func (l *ActionLog) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resets
}

// SaveIfFresh overwrites the collection only if no Reset has occurred since
// the given generation was observed, and reports whether it saved.
func (l *ActionLog) SaveIfFresh(ctx context.Context, actions []Action, gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resets != gen {
		return false
	}
	l.save(ctx, actions)
	return true
}

// Len returns the number of pending actions.
func (l *ActionLog) Len(ctx context.Context) int {
	return len(l.Load(ctx))
}

// Close closes the underlying store.
func (l *ActionLog) Close() error {
	return l.store.Close()
}

func (l *ActionLog) load(ctx context.Context) []Action {
	actions, err := l.store.Load(ctx)
	if err != nil {
		l.logger.LogError(queueErrors.NewStorageError(queueErrors.OpLoad, err), "load failed, degrading to empty log")
		return nil
	}

	valid := actions[:0:0]
	for _, a := range actions {
		if a.SchemaVersion > SchemaVersion {
			l.logger.Warn("dropping action with unsupported schema version",
				slog.String("id", a.ID), slog.Int("schema_version", a.SchemaVersion))
			continue
		}
		valid = append(valid, a)
	}
	return valid
}

func (l *ActionLog) save(ctx context.Context, actions []Action) {
	if actions == nil {
		actions = []Action{}
	}
	if err := l.store.Save(ctx, actions); err != nil {
		l.logger.LogError(queueErrors.NewStorageError(queueErrors.OpSave, err), "save failed, pending actions may be lost on restart",
			slog.Int("pending", len(actions)))
	}
}

// StaleBefore returns a prune predicate removing actions enqueued before
// now minus maxAge, regardless of attempt count.
func StaleBefore(now time.Time, maxAge time.Duration) func(Action) bool {
	return func(a Action) bool {
		return a.OlderThan(now, maxAge)
	}
}

// AttemptsAtLeast returns a prune predicate removing actions whose attempt
// counter reached the given ceiling.
func AttemptsAtLeast(ceiling int) func(Action) bool {
	return func(a Action) bool {
		return a.Attempts >= ceiling
	}
}

// Invalid is a prune predicate removing actions that no longer validate.
func Invalid(a Action) bool {
	return a.Validate() != nil
}
