package offline

import (
	"context"
	"fmt"

	"github.com/c0deZ3R0/go-offline-kit/logging"
)

// Service bundles the queue, orchestrator and prober with an explicit
// lifecycle. Construct one per process and pass it by reference; there is
// no package-level mutable state.
type Service struct {
	log          *ActionLog
	queue        *Queue
	orchestrator *Orchestrator
	prober       *Prober

	started bool
	cancel  context.CancelFunc
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	logger       *logging.Logger
	metrics      MetricsCollector
	queueOpts    QueueOptions
	orchOpts     OrchestratorOptions
	proberOpts   []ProberOption
	notifier     Notifier
}

// WithServiceLogger sets the logger shared by all components.
func WithServiceLogger(logger *logging.Logger) ServiceOption {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

// WithServiceMetrics sets the metrics collector shared by all components.
func WithServiceMetrics(m MetricsCollector) ServiceOption {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

// WithServiceQueueOptions overrides the queue policy.
func WithServiceQueueOptions(opts QueueOptions) ServiceOption {
	return func(c *serviceConfig) {
		c.queueOpts = opts
	}
}

// WithServiceOrchestratorOptions overrides the scheduling policy.
func WithServiceOrchestratorOptions(opts OrchestratorOptions) ServiceOption {
	return func(c *serviceConfig) {
		c.orchOpts = opts
	}
}

// WithServiceProberOptions configures the connectivity prober.
func WithServiceProberOptions(opts ...ProberOption) ServiceOption {
	return func(c *serviceConfig) {
		c.proberOpts = append(c.proberOpts, opts...)
	}
}

// WithServiceNotifier sets the worker bridge notifier.
func WithServiceNotifier(n Notifier) ServiceOption {
	return func(c *serviceConfig) {
		c.notifier = n
	}
}

// NewService wires a queue, orchestrator and prober over the given durable
// store and remote executor.
func NewService(store Store, exec Executor, opts ...ServiceOption) *Service {
	cfg := &serviceConfig{
		logger:    logging.Nop(),
		metrics:   &NoOpMetricsCollector{},
		queueOpts: DefaultQueueOptions(),
		orchOpts:  DefaultOrchestratorOptions(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	log := NewActionLog(store, cfg.logger)
	prober := NewProber(append([]ProberOption{WithProbeLogger(cfg.logger)}, cfg.proberOpts...)...)
	queue := NewQueue(log, exec, prober,
		WithQueueLogger(cfg.logger),
		WithQueueMetrics(cfg.metrics),
		WithQueueOptions(cfg.queueOpts),
	)

	orchOpts := []OrchestratorOption{
		WithOrchestratorLogger(cfg.logger),
		WithOrchestratorMetrics(cfg.metrics),
		WithOrchestratorOptions(cfg.orchOpts),
	}
	if cfg.notifier != nil {
		orchOpts = append(orchOpts, WithNotifier(cfg.notifier))
	}
	orchestrator := NewOrchestrator(queue, prober, orchOpts...)

	return &Service{
		log:          log,
		queue:        queue,
		orchestrator: orchestrator,
		prober:       prober,
	}
}

// Start launches the prober and orchestrator loops and wires connectivity
// transitions to sync attempts.
func (s *Service) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("service already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.prober.Subscribe(s.orchestrator.OnQualityChange(runCtx))

	if err := s.prober.Start(runCtx); err != nil {
		cancel()
		return err
	}
	if err := s.orchestrator.Start(runCtx); err != nil {
		s.prober.Stop()
		cancel()
		return err
	}

	s.started = true
	return nil
}

// Close stops the background loops and releases the store.
func (s *Service) Close() error {
	if s.started {
		s.orchestrator.Stop()
		s.prober.Stop()
		s.cancel()
		s.started = false
	}
	return s.log.Close()
}

// Queue returns the mutation API.
func (s *Service) Queue() *Queue { return s.queue }

// Orchestrator returns the sync orchestrator.
func (s *Service) Orchestrator() *Orchestrator { return s.orchestrator }

// Prober returns the connectivity prober.
func (s *Service) Prober() *Prober { return s.prober }

// Status reports the observable queue condition.
func (s *Service) Status(ctx context.Context) Status {
	return s.orchestrator.Status(ctx)
}
