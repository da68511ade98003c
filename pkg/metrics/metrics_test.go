package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestInstrumentationNilIsSafe ensures a disabled instrumentation records
// nothing and never panics.
func TestInstrumentationNilIsSafe(t *testing.T) {
	var inst *Instrumentation
	inst.ObserveSolverQuery("z3", KindSat, "sat", time.Millisecond)
	inst.FormulaExplored()
	inst.FormulaSubsumed()
	inst.SuccessorsEnqueued(3)
	inst.ObserveLeap(16)
}

// TestSummaryRendersNonZeroSamples checks the --stat rendering.
func TestSummaryRendersNonZeroSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	inst := NewInstrumentation(reg)

	inst.FormulaExplored()
	inst.FormulaExplored()
	inst.SuccessorsEnqueued(4)
	inst.ObserveSolverQuery("z3", KindSat, "sat", 10*time.Millisecond)
	inst.ObserveLeap(16)

	summary, err := Summary(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"octopus_engine_formulas_explored_total = 2",
		"octopus_engine_successors_enqueued_total = 4",
		`octopus_solver_queries_total{kind="is_sat",result="sat",solver="z3"} = 1`,
		"octopus_engine_leap_bits = count 1, sum 16",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary misses %q:\n%s", want, summary)
		}
	}
	if strings.Contains(summary, "formulas_subsumed") {
		t.Errorf("zero-valued counters should be omitted:\n%s", summary)
	}
}

// TestSummaryIsSorted keeps --stat output deterministic.
func TestSummaryIsSorted(t *testing.T) {
	reg := prometheus.NewRegistry()
	inst := NewInstrumentation(reg)
	inst.ObserveSolverQuery("z3", KindValid, "unsat", time.Millisecond)
	inst.FormulaExplored()

	summary, err := Summary(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(summary, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i-1] > lines[i] {
			t.Errorf("summary lines not sorted: %q > %q", lines[i-1], lines[i])
		}
	}
}
