package pathsync

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus instruments for the engine. A nil *Metrics is
// valid and records nothing, so instrumentation stays optional.
type Metrics struct {
	localWrites    *prometheus.CounterVec
	remoteWrites   prometheus.Counter
	remoteFailures prometheus.Counter
	queued         prometheus.Counter
	flushed        prometheus.Counter
	flushFailed    prometheus.Counter
	conflicts      *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	flushLatency   prometheus.Histogram
}

// NewMetrics creates and registers the engine's instruments. Pass
// prometheus.DefaultRegisterer or a private registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pathsync"
	}

	m := &Metrics{
		localWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_writes_total",
			Help:      "Local store writes by operation.",
		}, []string{"operation"}),
		remoteWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_writes_total",
			Help:      "Successful remote persists.",
		}),
		remoteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_failures_total",
			Help:      "Failed remote persists.",
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queued_writes_total",
			Help:      "Writes deferred to the sync queue.",
		}),
		flushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_items_total",
			Help:      "Queue items successfully replayed.",
		}),
		flushFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_failures_total",
			Help:      "Queue items that failed replay and stayed queued.",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_resolved_total",
			Help:      "Cross-device conflicts by winning side.",
		}, []string{"winner"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Pending items in the sync queue.",
		}),
		flushLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Wall time of queue drains.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.localWrites, m.remoteWrites, m.remoteFailures,
			m.queued, m.flushed, m.flushFailed,
			m.conflicts, m.queueDepth, m.flushLatency,
		)
	}
	return m
}

func (m *Metrics) LocalWrite(operation string) {
	if m == nil {
		return
	}
	m.localWrites.WithLabelValues(operation).Inc()
}

func (m *Metrics) RemoteWrite(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.remoteFailures.Inc()
		return
	}
	m.remoteWrites.Inc()
}

func (m *Metrics) Queued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

func (m *Metrics) FlushResult(flushed, failed int, seconds float64) {
	if m == nil {
		return
	}
	m.flushed.Add(float64(flushed))
	m.flushFailed.Add(float64(failed))
	m.flushLatency.Observe(seconds)
}

func (m *Metrics) ConflictResolved(winner ConflictWinner) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(string(winner)).Inc()
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
