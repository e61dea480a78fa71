package offline

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"github.com/c0deZ3R0/go-offline-kit/logging"
)

// ConnectionQuality classifies empirical connectivity.
type ConnectionQuality string

const (
	QualityGood    ConnectionQuality = "good"
	QualityPoor    ConnectionQuality = "poor"
	QualityOffline ConnectionQuality = "offline"
)

// ConnectivitySource reports whether the process should currently attempt
// network mutations.
type ConnectivitySource interface {
	Online() bool
}

// ConnectivityFunc adapts a function to the ConnectivitySource interface.
type ConnectivityFunc func() bool

func (f ConnectivityFunc) Online() bool { return f() }

// Prober distinguishes good from poor from offline connectivity. The
// platform-level online flag is unreliable (a device can report online while
// every request times out), so the prober issues lightweight cache-busting
// HEAD probes with bounded timeouts and lets empirical failure override the
// platform flag.
//
// Probe decision: primary probe success means good. Failure while the
// platform flag reports offline means offline. Failure while the platform
// reports online triggers a second, shorter probe against a secondary
// endpoint: success means poor, failure means offline.
type Prober struct {
	client           *http.Client
	primaryURL       string
	secondaryURL     string
	primaryTimeout   time.Duration
	secondaryTimeout time.Duration
	interval         time.Duration
	settleDelay      time.Duration
	platform         func() bool
	logger           *logging.Logger
	now              func() time.Time

	mu          sync.RWMutex
	quality     ConnectionQuality
	lastChecked time.Time
	subscribers []func(ConnectionQuality)
	// platformOnline is the last transition fed through SetPlatformOnline,
	// consulted when no explicit platform source is configured.
	platformOnline bool

	runMu   sync.Mutex
	stopCh  chan struct{}
	wakeCh  chan struct{}
	settle  *time.Timer
	started bool
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProbeEndpoints sets the primary and secondary probe endpoints.
func WithProbeEndpoints(primary, secondary string) ProberOption {
	return func(p *Prober) {
		p.primaryURL = primary
		p.secondaryURL = secondary
	}
}

// WithProbeTimeouts sets the bounded timeouts for the two probes.
func WithProbeTimeouts(primary, secondary time.Duration) ProberOption {
	return func(p *Prober) {
		p.primaryTimeout = primary
		p.secondaryTimeout = secondary
	}
}

// WithProbeInterval sets the periodic re-probe interval.
func WithProbeInterval(interval time.Duration) ProberOption {
	return func(p *Prober) {
		p.interval = interval
	}
}

// WithPlatformSignal supplies the platform-level online flag source.
func WithPlatformSignal(platform func() bool) ProberOption {
	return func(p *Prober) {
		p.platform = platform
	}
}

// WithProbeHTTPClient sets a custom HTTP client for probes.
func WithProbeHTTPClient(client *http.Client) ProberOption {
	return func(p *Prober) {
		p.client = client
	}
}

// WithProbeLogger sets the prober's logger.
func WithProbeLogger(logger *logging.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = logger.WithComponent("probe")
	}
}

// NewProber creates a connectivity prober. The zero configuration probes a
// well-known external endpoint every 30 seconds.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		client:           &http.Client{},
		primaryURL:       "https://www.google.com/favicon.ico",
		secondaryURL:     "https://httpbin.org/status/200",
		primaryTimeout:   5 * time.Second,
		secondaryTimeout: 2 * time.Second,
		interval:         30 * time.Second,
		settleDelay:      time.Second,
		logger:           logging.Nop(),
		now:              time.Now,
		quality:          QualityGood,
		platformOnline:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check runs the probe sequence once and returns the resulting quality.
func (p *Prober) Check(ctx context.Context) ConnectionQuality {
	quality := QualityGood

	if err := p.probe(ctx, p.primaryURL, p.primaryTimeout); err != nil {
		if !p.platformReportsOnline() {
			quality = QualityOffline
		} else if err := p.probe(ctx, p.secondaryURL, p.secondaryTimeout); err != nil {
			// Both probes failed: offline, whatever the platform flag says.
			quality = QualityOffline
		} else {
			quality = QualityPoor
		}
	}

	p.setQuality(quality)
	return quality
}

// Quality returns the last observed connection quality.
func (p *Prober) Quality() ConnectionQuality {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.quality
}

// Online implements ConnectivitySource.
func (p *Prober) Online() bool {
	return p.Quality() != QualityOffline
}

// LastChecked returns when the quality was last updated.
func (p *Prober) LastChecked() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastChecked
}

// Subscribe registers a handler invoked on every quality transition.
func (p *Prober) Subscribe(handler func(ConnectionQuality)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, handler)
}

// SetPlatformOnline feeds a platform connectivity transition. Going offline
// is trusted immediately; going online is assumed good and re-verified by a
// probe after a short settle delay.
func (p *Prober) SetPlatformOnline(online bool) {
	p.mu.Lock()
	p.platformOnline = online
	p.mu.Unlock()

	if !online {
		p.setQuality(QualityOffline)
		return
	}

	p.setQuality(QualityGood)

	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.settle != nil {
		p.settle.Stop()
	}
	p.settle = time.AfterFunc(p.settleDelay, p.Wake)
}

// Wake requests an immediate re-probe (window focus regained, process
// resumed, and similar signals).
func (p *Prober) Wake() {
	p.runMu.Lock()
	wake := p.wakeCh
	p.runMu.Unlock()
	if wake == nil {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

// Start probes immediately and then on every interval tick and wake signal
// until Stop is called or the context is cancelled.
func (p *Prober) Start(ctx context.Context) error {
	p.runMu.Lock()
	if p.started {
		p.runMu.Unlock()
		return fmt.Errorf("prober already started")
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.wakeCh = make(chan struct{}, 1)
	stop, wake := p.stopCh, p.wakeCh
	p.runMu.Unlock()

	go func() {
		p.Check(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				p.Check(ctx)
			case <-wake:
				p.Check(ctx)
			}
		}
	}()

	return nil
}

// Stop halts periodic probing.
func (p *Prober) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
	if p.settle != nil {
		p.settle.Stop()
		p.settle = nil
	}
}

// platformReportsOnline consults the configured platform source when one is
// set, otherwise the last transition fed through SetPlatformOnline.
func (p *Prober) platformReportsOnline() bool {
	if p.platform != nil {
		return p.platform()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.platformOnline
}

func (p *Prober) probe(ctx context.Context, url string, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Cache-busting query parameter so intermediaries cannot answer for the
	// origin.
	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead,
		fmt.Sprintf("%s?t=%d", url, p.now().UnixNano()), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (p *Prober) setQuality(quality ConnectionQuality) {
	p.mu.Lock()
	changed := p.quality != quality
	p.quality = quality
	p.lastChecked = p.now()
	subscribers := make([]func(ConnectionQuality), len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	if !changed {
		return
	}

	p.logger.Info("connection quality changed", slog.String("quality", string(quality)))
	for _, handler := range subscribers {
		handler(quality)
	}
}
