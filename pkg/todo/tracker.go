package todo

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devicelab-dev/todo-runner/pkg/core"
)

// Outcome names, also used as the "outcome" label of the counter.
const (
	OutcomeAdded     = "added"
	OutcomeCompleted = "completed"
	OutcomeDeleted   = "deleted"
	OutcomeUpdated   = "updated"
	OutcomeErrors    = "errors"
)

// Tracker counts confirmed outcomes and errors for one run.
// Counts only increase. Only the engine records; anyone may read.
type Tracker struct {
	mu    sync.Mutex
	stats core.Stats

	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
}

// NewTracker creates a tracker with all counters at zero.
func NewTracker() *Tracker {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "todo_runner",
		Name:      "outcomes_total",
		Help:      "Confirmed to-do outcomes and errors observed during the run.",
	}, []string{"outcome"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(outcomes)

	// Expose every series from the start, even at zero.
	for _, o := range []string{OutcomeAdded, OutcomeCompleted, OutcomeDeleted, OutcomeUpdated, OutcomeErrors} {
		outcomes.WithLabelValues(o)
	}

	return &Tracker{registry: registry, outcomes: outcomes}
}

// Snapshot returns a consistent copy of the counters.
func (t *Tracker) Snapshot() core.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Registry exposes the counters for export.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

func (t *Tracker) recordAdded()     { t.record(OutcomeAdded, &t.stats.Added) }
func (t *Tracker) recordCompleted() { t.record(OutcomeCompleted, &t.stats.Completed) }
func (t *Tracker) recordDeleted()   { t.record(OutcomeDeleted, &t.stats.Deleted) }
func (t *Tracker) recordUpdated()   { t.record(OutcomeUpdated, &t.stats.Updated) }
func (t *Tracker) recordError()     { t.record(OutcomeErrors, &t.stats.Errors) }

func (t *Tracker) record(outcome string, field *int) {
	t.mu.Lock()
	*field++
	t.mu.Unlock()
	t.outcomes.WithLabelValues(outcome).Inc()
}
