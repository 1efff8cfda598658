package pathsync

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ConnectionQuality classifies the link to the remote store on an ordered
// scale. Comparisons are meaningful: Good.AtLeast(Poor) is true.
type ConnectionQuality int

const (
	QualityOffline ConnectionQuality = iota
	QualityPoor
	QualityGood
	QualityExcellent
)

// String returns a human-readable quality name.
func (q ConnectionQuality) String() string {
	switch q {
	case QualityOffline:
		return "offline"
	case QualityPoor:
		return "poor"
	case QualityGood:
		return "good"
	case QualityExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// AtLeast reports whether q is at or above the given threshold.
func (q ConnectionQuality) AtLeast(threshold ConnectionQuality) bool {
	return q >= threshold
}

// ConnectionMonitorConfig configures probing behavior.
type ConnectionMonitorConfig struct {
	// ProbeInterval between periodic reachability checks. Default: 30s.
	ProbeInterval time.Duration

	// ProbeTimeout bounds each individual probe. Default: 5s.
	ProbeTimeout time.Duration

	// ExcellentLatency is the upper bound for QualityExcellent. Default: 150ms.
	ExcellentLatency time.Duration

	// GoodLatency is the upper bound for QualityGood. Probes slower than
	// this but still succeeding classify as QualityPoor. Default: 600ms.
	GoodLatency time.Duration

	// FailureThreshold is the number of consecutive probe failures before
	// the monitor reports QualityOffline. Default: 3.
	FailureThreshold int

	// Logger for state transitions. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConnectionMonitorConfig returns default configuration.
func DefaultConnectionMonitorConfig() ConnectionMonitorConfig {
	return ConnectionMonitorConfig{
		ProbeInterval:    30 * time.Second,
		ProbeTimeout:     5 * time.Second,
		ExcellentLatency: 150 * time.Millisecond,
		GoodLatency:      600 * time.Millisecond,
		FailureThreshold: 3,
	}
}

// ConnectionMonitor tracks remote reachability by timing probe calls. It
// starts pessimistic (offline) and upgrades after the first successful
// probe. A single failed probe does not downgrade to offline; the failure
// threshold must trip first, which keeps one flaky request from pausing
// sync.
type ConnectionMonitor struct {
	config ConnectionMonitorConfig
	remote RemoteClient
	logger *slog.Logger

	mu           sync.RWMutex
	quality      ConnectionQuality
	failures     int
	lastProbe    time.Time
	lastLatency  time.Duration
	listeners    []func(ConnectionQuality)
	stopCh       chan struct{}
	running      bool
	totalProbes  uint64
	failedProbes uint64
}

// NewConnectionMonitor creates a monitor over the given remote client.
func NewConnectionMonitor(config ConnectionMonitorConfig, remote RemoteClient) *ConnectionMonitor {
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = 30 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.ExcellentLatency <= 0 {
		config.ExcellentLatency = 150 * time.Millisecond
	}
	if config.GoodLatency <= 0 {
		config.GoodLatency = 600 * time.Millisecond
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ConnectionMonitor{
		config:  config,
		remote:  remote,
		logger:  logger,
		quality: QualityOffline,
	}
}

// Start launches the periodic probe loop. It probes once immediately.
func (c *ConnectionMonitor) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	go c.probeLoop(stopCh)
}

// Stop halts the probe loop.
func (c *ConnectionMonitor) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)
}

func (c *ConnectionMonitor) probeLoop(stopCh chan struct{}) {
	c.CheckNow(context.Background())

	ticker := time.NewTicker(c.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CheckNow(context.Background())
		case <-stopCh:
			return
		}
	}
}

// CheckNow probes the remote synchronously and returns the resulting
// quality. Callers use it to refresh state before deciding to drain.
func (c *ConnectionMonitor) CheckNow(ctx context.Context) ConnectionQuality {
	probeCtx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
	defer cancel()

	start := time.Now()
	err := c.remote.Probe(probeCtx)
	latency := time.Since(start)

	c.mu.Lock()
	c.totalProbes++
	c.lastProbe = time.Now()
	c.lastLatency = latency

	previous := c.quality
	if err != nil {
		c.failedProbes++
		c.failures++
		if c.failures >= c.config.FailureThreshold {
			c.quality = QualityOffline
		}
	} else {
		c.failures = 0
		c.quality = classifyLatency(latency, c.config)
	}
	current := c.quality

	var listeners []func(ConnectionQuality)
	if current != previous {
		listeners = make([]func(ConnectionQuality), len(c.listeners))
		copy(listeners, c.listeners)
	}
	c.mu.Unlock()

	if current != previous {
		c.logger.Info("connection quality changed",
			"from", previous.String(),
			"to", current.String(),
			"latency_ms", latency.Milliseconds())
		for _, fn := range listeners {
			fn(current)
		}
	}

	return current
}

func classifyLatency(latency time.Duration, config ConnectionMonitorConfig) ConnectionQuality {
	switch {
	case latency <= config.ExcellentLatency:
		return QualityExcellent
	case latency <= config.GoodLatency:
		return QualityGood
	default:
		return QualityPoor
	}
}

// Quality returns the current classification.
func (c *ConnectionMonitor) Quality() ConnectionQuality {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quality
}

// OnChange registers a callback invoked whenever quality transitions.
// Callbacks run on the probing goroutine and must not block.
func (c *ConnectionMonitor) OnChange(fn func(ConnectionQuality)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// ConnectionStats is a snapshot of monitor counters.
type ConnectionStats struct {
	Quality      ConnectionQuality `json:"quality"`
	Failures     int               `json:"consecutive_failures"`
	TotalProbes  uint64            `json:"total_probes"`
	FailedProbes uint64            `json:"failed_probes"`
	LastProbe    time.Time         `json:"last_probe"`
	LastLatency  time.Duration     `json:"last_latency"`
}

// Stats returns current monitor statistics.
func (c *ConnectionMonitor) Stats() ConnectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ConnectionStats{
		Quality:      c.quality,
		Failures:     c.failures,
		TotalProbes:  c.totalProbes,
		FailedProbes: c.failedProbes,
		LastProbe:    c.lastProbe,
		LastLatency:  c.lastLatency,
	}
}
