package offline

import "time"

// MetricsCollector provides hooks for observability.
type MetricsCollector interface {
	// RecordSyncDuration records how long a replay pass took
	RecordSyncDuration(d time.Duration)

	// RecordReplays records the outcome counts of a replay pass
	RecordReplays(succeeded, failed, pruned int)

	// RecordQueueDepth records the pending action count after a queue operation
	RecordQueueDepth(depth int)

	// RecordBreakerTrip records a circuit breaker activation
	RecordBreakerTrip(depth int)

	// RecordEnqueue records an action deferred to the offline log
	RecordEnqueue(kind string)
}

// NoOpMetricsCollector is a stub implementation that discards metrics.
type NoOpMetricsCollector struct{}

func (*NoOpMetricsCollector) RecordSyncDuration(d time.Duration)            {}
func (*NoOpMetricsCollector) RecordReplays(succeeded, failed, pruned int)   {}
func (*NoOpMetricsCollector) RecordQueueDepth(depth int)                    {}
func (*NoOpMetricsCollector) RecordBreakerTrip(depth int)                   {}
func (*NoOpMetricsCollector) RecordEnqueue(kind string)                     {}
