package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes orchestrator counters to Prometheus.
type Metrics struct {
	cyclesStarted   prometheus.Counter
	cyclesSucceeded prometheus.Counter
	cyclesFailed    prometheus.Counter
	cycleDuration   prometheus.Histogram
	changesDetected prometheus.Counter
	snapshotsPruned prometheus.Counter
	reportsPruned   prometheus.Counter
}

// NewMetrics registers the orchestrator metrics with the given registerer.
// A nil registerer uses the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		cyclesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "driftscope",
			Name:      "cycles_started_total",
			Help:      "Number of collection cycles started.",
		}),
		cyclesSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "driftscope",
			Name:      "cycles_succeeded_total",
			Help:      "Number of collection cycles that completed successfully.",
		}),
		cyclesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "driftscope",
			Name:      "cycles_failed_total",
			Help:      "Number of collection cycles that failed.",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "driftscope",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of collection cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		changesDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "driftscope",
			Name:      "changes_detected_total",
			Help:      "Number of drift changes detected across all reports.",
		}),
		snapshotsPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "driftscope",
			Name:      "snapshots_pruned_total",
			Help:      "Number of snapshots removed by retention.",
		}),
		reportsPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "driftscope",
			Name:      "reports_pruned_total",
			Help:      "Number of drift reports removed by retention.",
		}),
	}
}
