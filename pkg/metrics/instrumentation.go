// Package metrics publishes Prometheus instrumentation for the equivalence
// checker: solver query counts and latencies plus bisimulation loop
// statistics. The checker is a batch CLI, so metrics are gathered in-process
// and rendered as a textual summary instead of being served over HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query kind labels.
const (
	KindSat   = "is_sat"
	KindValid = "is_valid"
	KindModel = "get_model"
)

// Instrumentation publishes Prometheus metrics for one checker run. A nil
// Instrumentation is valid and records nothing.
type Instrumentation struct {
	solverQueries  *prometheus.CounterVec
	solverDuration *prometheus.HistogramVec

	formulasExplored   prometheus.Counter
	formulasSubsumed   prometheus.Counter
	successorsEnqueued prometheus.Counter
	leapBits           prometheus.Histogram
}

// NewInstrumentation registers all metric vectors with the given registerer.
func NewInstrumentation(reg prometheus.Registerer) *Instrumentation {
	inst := &Instrumentation{
		solverQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "octopus",
			Subsystem: "solver",
			Name:      "queries_total",
			Help:      "Solver portfolio queries by kind and verdict",
		}, []string{"solver", "kind", "result"}),
		solverDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "octopus",
			Subsystem: "solver",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock time per portfolio query",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}, []string{"kind"}),
		formulasExplored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "octopus",
			Subsystem: "engine",
			Name:      "formulas_explored_total",
			Help:      "Guarded formulas popped from the work queue",
		}),
		formulasSubsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "octopus",
			Subsystem: "engine",
			Name:      "formulas_subsumed_total",
			Help:      "Guarded formulas dropped because their knowledge was already recorded",
		}),
		successorsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "octopus",
			Subsystem: "engine",
			Name:      "successors_enqueued_total",
			Help:      "Successor guarded formulas appended to the work queue",
		}),
		leapBits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "octopus",
			Subsystem: "engine",
			Name:      "leap_bits",
			Help:      "Stream bits consumed per expansion round",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
	}
	reg.MustRegister(
		inst.solverQueries,
		inst.solverDuration,
		inst.formulasExplored,
		inst.formulasSubsumed,
		inst.successorsEnqueued,
		inst.leapBits,
	)
	return inst
}

// ObserveSolverQuery records one portfolio query answered by the named
// solver.
func (i *Instrumentation) ObserveSolverQuery(solver, kind, result string, d time.Duration) {
	if i == nil {
		return
	}
	i.solverQueries.WithLabelValues(solver, kind, result).Inc()
	i.solverDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// FormulaExplored counts one pop from the work queue.
func (i *Instrumentation) FormulaExplored() {
	if i == nil {
		return
	}
	i.formulasExplored.Inc()
}

// FormulaSubsumed counts one formula dropped by the subsumption check.
func (i *Instrumentation) FormulaSubsumed() {
	if i == nil {
		return
	}
	i.formulasSubsumed.Inc()
}

// SuccessorsEnqueued counts successors appended to the work queue.
func (i *Instrumentation) SuccessorsEnqueued(n int) {
	if i == nil {
		return
	}
	i.successorsEnqueued.Add(float64(n))
}

// ObserveLeap records the stream bits consumed by one expansion round.
func (i *Instrumentation) ObserveLeap(bits int) {
	if i == nil {
		return
	}
	i.leapBits.Observe(float64(bits))
}
