package services

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"qwenbridge/internal/models"
)

type transportCounters struct {
	calls        int64
	successes    int64
	failures     int64
	totalSeconds float64
}

// PerformanceTracker keeps running per-transport counters so the direct and
// fallback paths can be compared. Safe for concurrent use; snapshots are
// computed fresh from the counters on every call.
type PerformanceTracker struct {
	mu       sync.Mutex
	direct   transportCounters
	fallback transportCounters
	skips    int64

	promCalls    *prometheus.CounterVec
	promDuration *prometheus.HistogramVec
	promSkips    prometheus.Counter
}

// NewPerformanceTracker creates a tracker and registers its Prometheus
// collectors. Pass prometheus.NewRegistry() in tests.
func NewPerformanceTracker(reg prometheus.Registerer) *PerformanceTracker {
	t := &PerformanceTracker{
		promCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qwenbridge_dispatch_calls_total",
			Help: "Completed dispatch attempts by transport and outcome.",
		}, []string{"transport", "outcome"}),
		promDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qwenbridge_dispatch_duration_seconds",
			Help:    "Dispatch duration by transport, measured from orchestrator entry.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"transport"}),
		promSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qwenbridge_direct_skips_total",
			Help: "Dispatches that skipped the direct path for lack of a valid token.",
		}),
	}

	if reg != nil {
		reg.MustRegister(t.promCalls, t.promDuration, t.promSkips)
	}

	return t
}

// Record adds one completed dispatch to the counters.
func (t *PerformanceTracker) Record(transport models.Transport, duration time.Duration, success bool) {
	seconds := duration.Seconds()

	t.mu.Lock()
	c := &t.direct
	if transport == models.TransportFallback {
		c = &t.fallback
	}
	c.calls++
	c.totalSeconds += seconds
	if success {
		c.successes++
	} else {
		c.failures++
	}
	t.mu.Unlock()

	outcome := "success"
	if !success {
		outcome = "failure"
	}
	t.promCalls.WithLabelValues(string(transport), outcome).Inc()
	t.promDuration.WithLabelValues(string(transport)).Observe(seconds)
}

// RecordDirectSkip counts a dispatch that never attempted the direct path
// because no valid token was held. Skips are not direct failures.
func (t *PerformanceTracker) RecordDirectSkip() {
	t.mu.Lock()
	t.skips++
	t.mu.Unlock()
	t.promSkips.Inc()
}

// Snapshot returns a fresh point-in-time view of the counters.
func (t *PerformanceTracker) Snapshot() models.PerformanceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := models.PerformanceSnapshot{
		Direct:      statsFor(t.direct),
		Fallback:    statsFor(t.fallback),
		DirectSkips: t.skips,
	}

	if t.direct.calls > 0 && t.fallback.calls > 0 && snap.Direct.AvgSeconds > 0 {
		ratio := snap.Fallback.AvgSeconds / snap.Direct.AvgSeconds
		snap.SpeedImprovement = &ratio
	}

	return snap
}

func statsFor(c transportCounters) models.TransportStats {
	s := models.TransportStats{
		Calls:        c.calls,
		Successes:    c.successes,
		Failures:     c.failures,
		TotalSeconds: c.totalSeconds,
	}
	if c.calls > 0 {
		s.AvgSeconds = c.totalSeconds / float64(c.calls)
	}
	return s
}
