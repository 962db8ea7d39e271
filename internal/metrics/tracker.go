package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "timetrack_agent"

// Tracker counts what the agent did during this session. Counters are
// exported through a private Prometheus registry; Stats returns the same
// numbers for the shutdown summary.
type Tracker struct {
	registry    *prometheus.Registry
	reports     *prometheus.CounterVec
	skips       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	idleSeconds prometheus.Counter

	mu           sync.RWMutex
	sessionStart time.Time
	stats        Stats
}

// Stats is a snapshot of the session counters.
type Stats struct {
	ReportsSent    int
	ReportsFailed  int
	Screenshots    int
	SkippedIdle    int
	CaptureFailed  int
	IdlePeriods    int
	TotalIdle      time.Duration
	SessionRuntime time.Duration
}

// NewTracker creates a Tracker with its own registry, including the Go
// runtime and process collectors.
func NewTracker() *Tracker {
	t := &Tracker{
		registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Reports sent to the collector by action and result.",
		}, []string{"action", "result"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_skipped_total",
			Help:      "Capture ticks that produced no report, by reason.",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_transitions_total",
			Help:      "Idle state transitions by target state.",
		}, []string{"to"}),
		idleSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_seconds_total",
			Help:      "Completed idle time in seconds.",
		}),
		sessionStart: time.Now(),
	}
	t.registry.MustRegister(
		t.reports,
		t.skips,
		t.transitions,
		t.idleSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return t
}

// Registry returns the registry holding the agent's metrics.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

// RecordReport counts one report outcome.
func (t *Tracker) RecordReport(action string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	t.reports.WithLabelValues(action, result).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		t.stats.ReportsSent++
		if action == "screenshot" {
			t.stats.Screenshots++
		}
	} else {
		t.stats.ReportsFailed++
	}
}

// RecordSkip counts a capture tick that sent nothing.
func (t *Tracker) RecordSkip(reason string) {
	t.skips.WithLabelValues(reason).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	switch reason {
	case "idle":
		t.stats.SkippedIdle++
	default:
		t.stats.CaptureFailed++
	}
}

// RecordTransition counts a state change. idleFor is only added to the idle
// total when the user comes back.
func (t *Tracker) RecordTransition(to string, idleFor time.Duration) {
	t.transitions.WithLabelValues(to).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	if to == "idle" {
		t.stats.IdlePeriods++
		return
	}
	t.idleSeconds.Add(idleFor.Seconds())
	t.stats.TotalIdle += idleFor
}

// Stats returns the current session counters.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.stats
	s.SessionRuntime = time.Since(t.sessionStart)
	return s
}
