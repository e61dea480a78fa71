package offline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/c0deZ3R0/go-offline-kit/logging"
)

// OrchestratorState is the sync orchestrator's state machine position.
type OrchestratorState int

const (
	// StateIdle means no replay pass is running.
	StateIdle OrchestratorState = iota

	// StateSyncing means a replay pass is in flight.
	StateSyncing

	// StatePaused means the circuit breaker is engaged: auto-sync is
	// disabled until the timed re-enable fires.
	StatePaused
)

func (s OrchestratorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// QualitySource supplies the orchestrator's view of connectivity.
type QualitySource interface {
	ConnectivitySource
	Quality() ConnectionQuality
}

// Notifier receives a fire-and-forget nudge whenever a replay pass starts,
// so a companion worker process can run its own parallel queue.
type Notifier interface {
	Notify(ctx context.Context) error
}

// OrchestratorOptions configures scheduling, thresholds and the breaker.
type OrchestratorOptions struct {
	// TickInterval is how often queue depth and connectivity are
	// re-evaluated while the orchestrator runs.
	TickInterval time.Duration

	// SyncCooldown disables auto-sync for this long after every pass, so a
	// flapping network cannot thrash the queue.
	SyncCooldown time.Duration

	// WarningThreshold is the queue depth at which status reporting
	// switches to a warning presentation. No state change occurs.
	WarningThreshold int

	// DangerThreshold is the queue depth that trips the circuit breaker:
	// auto-sync is disabled and the whole log is reset, favoring
	// availability over retaining stale mutations.
	DangerThreshold int

	// BreakerPause is how long auto-sync stays disabled after a trip.
	BreakerPause time.Duration
}

// DefaultOrchestratorOptions returns the scheduling policy used when none
// is provided.
func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		TickInterval:     30 * time.Second,
		SyncCooldown:     5 * time.Second,
		WarningThreshold: 50,
		DangerThreshold:  100,
		BreakerPause:     30 * time.Second,
	}
}

// Orchestrator observes connectivity transitions, schedules replay passes
// and trips a circuit breaker when the queue grows pathologically large.
//
// A hung replay pass never stalls the periodic tick: ticks fire on their own
// schedule and the queue's re-entrancy guard keeps passes from overlapping.
type Orchestrator struct {
	queue    *Queue
	source   QualitySource
	notifier Notifier
	logger   *logging.Logger
	metrics  MetricsCollector
	opts     OrchestratorOptions

	mu       sync.Mutex
	state    OrchestratorState
	autoSync bool
	// reenable is the single cancellable timer handle shared by the
	// post-sync cooldown and the breaker pause. Scheduling a new re-enable
	// always cancels the previous one, so timers cannot stack.
	reenable *time.Timer
	stopCh   chan struct{}
	started  bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the orchestrator's logger.
func WithOrchestratorLogger(logger *logging.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger.WithComponent("orchestrator")
	}
}

// WithOrchestratorMetrics sets the orchestrator's metrics collector.
func WithOrchestratorMetrics(m MetricsCollector) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithOrchestratorOptions overrides the scheduling policy.
func WithOrchestratorOptions(opts OrchestratorOptions) OrchestratorOption {
	return func(o *Orchestrator) {
		o.opts = opts
	}
}

// WithNotifier sets the worker bridge notifier nudged on every pass.
func WithNotifier(n Notifier) OrchestratorOption {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// NewOrchestrator creates a sync orchestrator over the given queue and
// connectivity source.
func NewOrchestrator(queue *Queue, source QualitySource, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		queue:    queue,
		source:   source,
		logger:   logging.Nop(),
		metrics:  &NoOpMetricsCollector{},
		opts:     DefaultOrchestratorOptions(),
		state:    StateIdle,
		autoSync: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the periodic evaluation loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true
	o.stopCh = make(chan struct{})
	stop := o.stopCh
	o.mu.Unlock()

	go func() {
		ticker := time.NewTicker(o.opts.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				o.Evaluate(ctx)
			}
		}
	}()

	return nil
}

// Stop halts the evaluation loop and cancels any pending re-enable timer.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started {
		return
	}
	o.started = false
	close(o.stopCh)
	if o.reenable != nil {
		o.reenable.Stop()
		o.reenable = nil
	}
}

// Evaluate re-checks queue depth and connectivity once: it trips the
// breaker above the danger threshold and otherwise starts a replay pass in
// the background when connectivity and the breaker allow it.
func (o *Orchestrator) Evaluate(ctx context.Context) {
	depth := o.queue.Len(ctx)

	if depth > o.opts.DangerThreshold {
		o.tripBreaker(ctx, depth)
		return
	}

	o.mu.Lock()
	allowed := o.autoSync && o.state == StateIdle
	o.mu.Unlock()

	if !allowed || depth == 0 || !o.source.Online() {
		return
	}

	go o.runSync(ctx)
}

// OnQualityChange feeds a connectivity transition from the prober. A
// transition out of offline immediately attempts a sync.
func (o *Orchestrator) OnQualityChange(ctx context.Context) func(ConnectionQuality) {
	return func(quality ConnectionQuality) {
		if quality == QualityOffline {
			return
		}
		o.Evaluate(ctx)
	}
}

// TriggerSync runs a replay pass now, regardless of the auto-sync flag.
// Used by manual "sync now" controls. The queue's re-entrancy guard still
// applies.
func (o *Orchestrator) TriggerSync(ctx context.Context) (*SyncResult, error) {
	return o.sync(ctx)
}

// ForceCleanup is the manual emergency control: failed entries are cleared
// first, then aged entries; if the queue is still above the warning
// threshold the whole log is reset.
func (o *Orchestrator) ForceCleanup(ctx context.Context) {
	failed := o.queue.ClearFailedActions(ctx)
	old := o.queue.ClearOldActions(ctx)

	remaining := o.queue.Len(ctx)
	if remaining > o.opts.WarningThreshold {
		o.queue.Reset(ctx)
		remaining = 0
	}

	o.logger.Info("forced cleanup completed",
		slog.Int("cleared_failed", failed),
		slog.Int("cleared_old", old),
		slog.Int("remaining", remaining))
}

// Status reports the observable queue condition. It has no side effects:
// status computation must never mutate the queue, or recomputing it from a
// guard UI would feed back into cleanup triggering.
func (o *Orchestrator) Status(ctx context.Context) Status {
	o.mu.Lock()
	paused := o.state == StatePaused
	o.mu.Unlock()

	return ComputeStatus(
		o.source.Quality(),
		o.queue.Len(ctx),
		o.queue.Syncing(),
		paused,
		o.opts.WarningThreshold,
	)
}

// State returns the orchestrator's current state machine position.
func (o *Orchestrator) State() OrchestratorState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// AutoSyncEnabled reports whether automatic replay passes are allowed.
func (o *Orchestrator) AutoSyncEnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoSync
}

func (o *Orchestrator) runSync(ctx context.Context) {
	if _, err := o.sync(ctx); err != nil && err != ErrSyncInProgress {
		o.logger.LogError(err, "background sync pass failed")
	}
}

func (o *Orchestrator) sync(ctx context.Context) (*SyncResult, error) {
	o.mu.Lock()
	if o.state == StateSyncing {
		o.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	o.state = StateSyncing
	o.mu.Unlock()

	if o.notifier != nil {
		// Fire-and-forget nudge to the companion worker queue.
		if err := o.notifier.Notify(ctx); err != nil {
			o.logger.Warn("worker nudge failed", slog.String("error", err.Error()))
		}
	}

	result, err := o.queue.Sync(ctx)

	o.mu.Lock()
	// Only unwind state this pass owns: a breaker engaged in the meantime
	// keeps StatePaused and its re-enable timer.
	if o.state == StateSyncing {
		o.state = StateIdle
		// Cooldown after every pass, successful or not, so a flapping
		// network cannot immediately restart the cycle.
		o.autoSync = false
		o.scheduleReenableLocked(o.opts.SyncCooldown)
	}
	o.mu.Unlock()

	// The breaker never trips while a pass is in flight; re-check depth now
	// so a backlog that survived the pass still pauses the queue.
	if depth := o.queue.Len(ctx); depth > o.opts.DangerThreshold {
		o.tripBreaker(ctx, depth)
	}

	return result, err
}

func (o *Orchestrator) tripBreaker(ctx context.Context, depth int) {
	o.mu.Lock()
	if o.state != StateIdle {
		// Already paused, or a pass is in flight. Tripping mid-pass would
		// race the pass's final persist against the breaker's reset; the
		// pass re-checks depth on completion, so the trip is deferred,
		// never lost.
		o.mu.Unlock()
		return
	}
	o.state = StatePaused
	o.autoSync = false
	o.scheduleReenableLocked(o.opts.BreakerPause)
	o.mu.Unlock()

	o.logger.Warn("circuit breaker tripped, resetting action log",
		slog.Int("depth", depth),
		slog.Int("danger_threshold", o.opts.DangerThreshold))
	o.metrics.RecordBreakerTrip(depth)

	// Deliberate full reset, not a prune: availability over retaining a
	// pathological backlog of stale mutations.
	o.queue.Reset(ctx)
}

// scheduleReenableLocked arms the shared re-enable timer, replacing any
// pending one. Callers hold o.mu.
func (o *Orchestrator) scheduleReenableLocked(after time.Duration) {
	if o.reenable != nil {
		o.reenable.Stop()
	}
	o.reenable = time.AfterFunc(after, func() {
		o.mu.Lock()
		o.autoSync = true
		if o.state == StatePaused {
			o.state = StateIdle
		}
		o.mu.Unlock()
		o.logger.Debug("auto-sync re-enabled")
	})
}
