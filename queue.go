package offline

import (
	stderrors "errors"
	"sync/atomic"
	"time"

	"context"

	"log/slog"

	queueErrors "github.com/c0deZ3R0/go-offline-kit/errors"
	"github.com/c0deZ3R0/go-offline-kit/logging"
)

// ErrSyncInProgress is returned by Sync when a replay pass is already
// running. Overlapping passes would race on the persisted log's
// read-modify-write cycle, so only one runs at a time.
var ErrSyncInProgress = stderrors.New("sync already in progress")

// QueueOptions configures the queue manager's retry and pruning policy.
type QueueOptions struct {
	// MaxAttempts is the replay ceiling per action. Actions that reach it
	// are never replayed again automatically; they stay queryable until
	// pruned or reset.
	MaxAttempts int

	// MaxActionAge is the staleness ceiling applied before every replay
	// pass. Anything older is assumed abandoned and discarded.
	MaxActionAge time.Duration

	// OldActionAge is the shorter window used by ClearOldActions for
	// manual/emergency cleanup.
	OldActionAge time.Duration
}

// DefaultQueueOptions returns the policy used when none is provided.
func DefaultQueueOptions() QueueOptions {
	return QueueOptions{
		MaxAttempts:  2,
		MaxActionAge: 24 * time.Hour,
		OldActionAge: time.Hour,
	}
}

// Queue is the public-facing mutation API. Each call attempts the remote
// mutation immediately when the connectivity signal reports online and
// falls back to the durable action log otherwise.
//
// Propagation policy: offline calls always succeed (the mutation is
// deferred, not failed); online calls that fail with a transient error
// enqueue a fallback action and still return the error so the caller can
// show a notice; terminal errors are returned without enqueuing.
type Queue struct {
	log     *ActionLog
	exec    Executor
	conn    ConnectivitySource
	opts    QueueOptions
	logger  *logging.Logger
	metrics MetricsCollector

	syncing atomic.Bool
	now     func() time.Time
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the queue's logger.
func WithQueueLogger(logger *logging.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger.WithComponent("queue")
	}
}

// WithQueueMetrics sets the queue's metrics collector.
func WithQueueMetrics(m MetricsCollector) QueueOption {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithQueueOptions overrides the retry and pruning policy.
func WithQueueOptions(opts QueueOptions) QueueOption {
	return func(q *Queue) {
		q.opts = opts
	}
}

// withClock overrides the queue's time source in tests.
func withClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		q.now = now
	}
}

// NewQueue creates a queue manager over the given log, executor and
// connectivity source.
func NewQueue(log *ActionLog, exec Executor, conn ConnectivitySource, opts ...QueueOption) *Queue {
	q := &Queue{
		log:     log,
		exec:    exec,
		conn:    conn,
		opts:    DefaultQueueOptions(),
		logger:  logging.Nop(),
		metrics: &NoOpMetricsCollector{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// AddEvent creates a new event. Offline, the create is queued and an empty
// identifier is returned; the real identifier is assigned when the queued
// action replays.
func (q *Queue) AddEvent(ctx context.Context, payload map[string]interface{}) (string, error) {
	payload = withDefaultParticipants(payload)

	if !q.conn.Online() {
		q.enqueue(ctx, NewAction(KindCreate, "", "", payload))
		return "", nil
	}

	id, err := q.exec.Create(ctx, payload)
	if err != nil {
		qe := queueErrors.Classify(queueErrors.OpCreate, err)
		if qe.Retryable {
			q.enqueue(ctx, NewAction(KindCreate, "", "", payload))
		}
		return "", qe
	}
	return id, nil
}

// JoinEvent adds userID to the event's participant set.
func (q *Queue) JoinEvent(ctx context.Context, eventID, userID string) error {
	if !q.conn.Online() {
		q.enqueue(ctx, NewAction(KindJoin, eventID, userID, nil))
		return nil
	}

	if err := q.exec.Join(ctx, eventID, userID); err != nil {
		qe := queueErrors.Classify(queueErrors.OpJoin, err)
		if qe.Retryable {
			q.enqueue(ctx, NewAction(KindJoin, eventID, userID, nil))
		}
		return qe
	}
	return nil
}

// LeaveEvent removes userID from the event's participant set.
func (q *Queue) LeaveEvent(ctx context.Context, eventID, userID string) error {
	if !q.conn.Online() {
		q.enqueue(ctx, NewAction(KindLeave, eventID, userID, nil))
		return nil
	}

	if err := q.exec.Leave(ctx, eventID, userID); err != nil {
		qe := queueErrors.Classify(queueErrors.OpLeave, err)
		if qe.Retryable {
			q.enqueue(ctx, NewAction(KindLeave, eventID, userID, nil))
		}
		return qe
	}
	return nil
}

// UpdateEvent merges the given fields into the remote event document.
func (q *Queue) UpdateEvent(ctx context.Context, eventID string, payload map[string]interface{}) error {
	if !q.conn.Online() {
		q.enqueue(ctx, NewAction(KindUpdate, eventID, "", payload))
		return nil
	}

	if err := q.exec.Update(ctx, eventID, payload); err != nil {
		qe := queueErrors.Classify(queueErrors.OpUpdate, err)
		if qe.Retryable {
			q.enqueue(ctx, NewAction(KindUpdate, eventID, "", payload))
		}
		return qe
	}
	return nil
}

// DeleteEvent removes the remote event document.
func (q *Queue) DeleteEvent(ctx context.Context, eventID string) error {
	if !q.conn.Online() {
		q.enqueue(ctx, NewAction(KindDelete, eventID, "", nil))
		return nil
	}

	if err := q.exec.Delete(ctx, eventID); err != nil {
		qe := queueErrors.Classify(queueErrors.OpDelete, err)
		if qe.Retryable {
			q.enqueue(ctx, NewAction(KindDelete, eventID, "", nil))
		}
		return qe
	}
	return nil
}

// PendingActions returns a read-only snapshot of the queued actions.
func (q *Queue) PendingActions(ctx context.Context) []Action {
	return q.log.Load(ctx)
}

// SyncResult describes the outcome of one replay pass.
type SyncResult struct {
	// Replayed is the number of actions that succeeded and were removed
	Replayed int

	// Failed is the number of actions whose attempt counter was incremented
	Failed int

	// Skipped is the number of actions at the attempt ceiling left untouched
	Skipped int

	// Pruned is the number of invalid or stale actions removed before replay
	Pruned int

	// Errors contains the replay failures, for observability only
	Errors []error

	// StartTime is when the pass began
	StartTime time.Time

	// Duration is how long the pass took
	Duration time.Duration
}

// Sync replays the queued actions in enqueue order. Invalid and stale
// entries are pruned first; entries at the attempt ceiling are skipped;
// failures increment the attempt counter in place. The log is persisted
// once at the end of the pass. The replay path never re-enqueues: only the
// optimistic call path appends actions.
func (q *Queue) Sync(ctx context.Context) (*SyncResult, error) {
	if !q.syncing.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer q.syncing.Store(false)

	result := &SyncResult{StartTime: q.now()}
	defer func() {
		result.Duration = q.now().Sub(result.StartTime)
		q.metrics.RecordSyncDuration(result.Duration)
		q.metrics.RecordReplays(result.Replayed, result.Failed, result.Pruned)
	}()

	gen := q.log.Generation()
	actions := q.log.Load(ctx)
	if len(actions) == 0 {
		return result, nil
	}

	now := q.now()
	valid := actions[:0:0]
	for _, a := range actions {
		if a.Validate() != nil || a.OlderThan(now, q.opts.MaxActionAge) {
			result.Pruned++
			continue
		}
		valid = append(valid, a)
	}

	remaining := valid[:0:0]
	for i := range valid {
		a := &valid[i]

		if a.Attempts >= q.opts.MaxAttempts {
			result.Skipped++
			remaining = append(remaining, *a)
			continue
		}

		if err := q.replay(ctx, *a); err != nil {
			a.Attempts++
			result.Failed++
			result.Errors = append(result.Errors, err)
			q.logger.LogError(err, "replay failed",
				slog.String("action_id", a.ID),
				slog.String("kind", string(a.Kind)),
				slog.Int("attempts", a.Attempts))
			remaining = append(remaining, *a)
			continue
		}

		result.Replayed++
	}

	if q.log.SaveIfFresh(ctx, remaining, gen) {
		q.metrics.RecordQueueDepth(len(remaining))
	} else {
		// A reset landed while the pass was running; the reset wins and
		// the pass's surviving actions are discarded.
		q.logger.Warn("log was reset during the pass, discarding surviving actions",
			slog.Int("discarded", len(remaining)))
		q.metrics.RecordQueueDepth(q.log.Len(ctx))
	}

	q.logger.Info("sync pass completed",
		slog.Int("replayed", result.Replayed),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
		slog.Int("pruned", result.Pruned))

	return result, nil
}

// Syncing reports whether a replay pass is currently in flight.
func (q *Queue) Syncing() bool {
	return q.syncing.Load()
}

// ClearFailedActions removes actions at the attempt ceiling and reports how
// many were removed.
func (q *Queue) ClearFailedActions(ctx context.Context) int {
	return q.log.Prune(ctx, AttemptsAtLeast(q.opts.MaxAttempts))
}

// ClearOldActions removes actions older than the short cleanup window and
// reports how many were removed.
func (q *Queue) ClearOldActions(ctx context.Context) int {
	return q.log.Prune(ctx, StaleBefore(q.now(), q.opts.OldActionAge))
}

// Reset clears the whole log unconditionally.
func (q *Queue) Reset(ctx context.Context) {
	q.log.Reset(ctx)
	q.metrics.RecordQueueDepth(0)
}

// Len returns the number of pending actions.
func (q *Queue) Len(ctx context.Context) int {
	return q.log.Len(ctx)
}

// replay dispatches one queued action directly against the executor,
// bypassing the offline-check wrapper so a failing replay can never
// re-enqueue the same action.
func (q *Queue) replay(ctx context.Context, a Action) error {
	switch a.Kind {
	case KindCreate:
		_, err := q.exec.Create(ctx, withDefaultParticipants(a.Payload))
		return err
	case KindJoin:
		return q.exec.Join(ctx, a.EventID, a.UserID)
	case KindLeave:
		return q.exec.Leave(ctx, a.EventID, a.UserID)
	case KindUpdate:
		return q.exec.Update(ctx, a.EventID, a.Payload)
	case KindDelete:
		err := q.exec.Delete(ctx, a.EventID)
		if err != nil && queueErrors.IsNotFound(err) {
			// Already gone remotely: the end state is achieved.
			return nil
		}
		return err
	default:
		return queueErrors.NewValidationError(queueErrors.OpSync, stderrors.New("unknown action kind"))
	}
}

func (q *Queue) enqueue(ctx context.Context, a Action) {
	q.log.Append(ctx, a)
	q.metrics.RecordEnqueue(string(a.Kind))
	q.metrics.RecordQueueDepth(q.log.Len(ctx))
}

func withDefaultParticipants(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return payload
	}
	if _, ok := payload[ParticipantsField]; !ok {
		copied := make(map[string]interface{}, len(payload)+1)
		for k, v := range payload {
			copied[k] = v
		}
		copied[ParticipantsField] = []interface{}{}
		return copied
	}
	return payload
}
