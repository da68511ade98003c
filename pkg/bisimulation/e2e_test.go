package bisimulation_test

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jortvanleenen/Octopus/pkg/bisimulation"
	"github.com/jortvanleenen/Octopus/pkg/formula"
	"github.com/jortvanleenen/Octopus/pkg/program"
	pt "github.com/jortvanleenen/Octopus/pkg/program/programtest"
	"github.com/jortvanleenen/Octopus/pkg/smt"

	_ "github.com/jortvanleenen/Octopus/pkg/smt/cvc5"
	_ "github.com/jortvanleenen/Octopus/pkg/smt/z3"
)

// solverOracle builds a real portfolio from whichever solver binaries are
// installed, skipping the test when there are none.
func solverOracle(t *testing.T) smt.Oracle {
	t.Helper()
	var backends []*smt.Backend
	for _, name := range []string{"z3", "cvc5"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		b, err := smt.NewBackend(name, nil)
		require.NoError(t, err)
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		t.Skip("no SMT solver binary (z3, cvc5) on PATH")
	}
	return smt.NewPortfolio(backends, smt.PortfolioConfig{QueryTimeout: time.Minute})
}

func runE2E(t *testing.T, leftDoc, rightDoc []byte, opts bisimulation.Options) *bisimulation.Result {
	t.Helper()
	left, err := program.Build(leftDoc, true, zap.NewNop())
	require.NoError(t, err)
	right, err := program.Build(rightDoc, false, zap.NewNop())
	require.NoError(t, err)

	engine, err := bisimulation.New(left, right, solverOracle(t), opts, zap.NewNop(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	result, err := engine.Run(ctx)
	require.NoError(t, err)
	return result
}

// TestScenarioIdentity compares the ethernet parser with itself.
func TestScenarioIdentity(t *testing.T) {
	result := runE2E(t, ethernetDoc(), ethernetDoc(), bisimulation.Options{EnableLeaps: true})

	assert.True(t, result.Equivalent)
	gs := guards(result)
	assert.Contains(t, gs, formula.Guard{StateL: "start", StateR: "start"})
	assert.Contains(t, gs, formula.Guard{StateL: "accept", StateR: "accept"})
}

// TestScenarioReorderedFields detects the swapped 24-bit halves.
func TestScenarioReorderedFields(t *testing.T) {
	leftDoc, rightDoc := swappedFieldsDocs()
	result := runE2E(t, leftDoc, rightDoc, bisimulation.Options{EnableLeaps: true})

	assert.False(t, result.Equivalent)
	require.NotNil(t, result.Counterexample)
	require.NotNil(t, result.Counterexample.Stream)
	assert.Equal(t, 48, result.Counterexample.Stream.Length)

	// The model must actually split differently: the two 24-bit halves of
	// the stream differ.
	bits := result.Counterexample.Stream.Bits
	require.Len(t, bits, 48)
	assert.NotEqual(t, bits[:24], bits[24:], "a distinguishing stream assigns the halves differently")
}

func priorityDoc(firstDefault bool) []byte {
	cases := []map[string]any{
		pt.Case(pt.Constant(0x00), "accept"),
		pt.Case(pt.Default(), "reject"),
	}
	if firstDefault {
		cases = []map[string]any{
			pt.Case(pt.Default(), "reject"),
			pt.Case(pt.Constant(0x00), "accept"),
		}
	}
	return pt.Document(
		pt.HeaderType("x_t", pt.BitsField("v", 8)),
		pt.StructType("headers", pt.NameField("x", "x_t")),
		pt.Parser("pkt", "h", "headers",
			pt.State("start",
				[]map[string]any{pt.ExtractCall("h", "x")},
				pt.Select([]map[string]any{pt.Member("h", "x", "v")}, cases...))),
	)
}

// TestScenarioSelectPriority distinguishes case orderings: a leading default
// shadows every later case.
func TestScenarioSelectPriority(t *testing.T) {
	result := runE2E(t, priorityDoc(false), priorityDoc(true), bisimulation.Options{EnableLeaps: true})

	assert.False(t, result.Equivalent)
	require.NotNil(t, result.Counterexample)
	require.NotNil(t, result.Counterexample.Stream)
	assert.Equal(t, 8, result.Counterexample.Stream.Length)
	assert.Equal(t, strings.Repeat("0", 8), result.Counterexample.Stream.Bits,
		"only x = 0x00 separates the two priority orders")
}

// TestScenarioPriorityReflexive double-checks that each ordering is
// equivalent to itself.
func TestScenarioPriorityReflexive(t *testing.T) {
	for _, firstDefault := range []bool{false, true} {
		result := runE2E(t, priorityDoc(firstDefault), priorityDoc(firstDefault), bisimulation.Options{EnableLeaps: true})
		assert.True(t, result.Equivalent, "firstDefault=%v", firstDefault)
	}
}

// TestScenarioLeapEquivalence runs Scenario D against a real solver with
// leaps on and off.
func TestScenarioLeapEquivalence(t *testing.T) {
	leftDoc, rightDoc := scenarioDDocs()
	for _, leaps := range []bool{true, false} {
		result := runE2E(t, leftDoc, rightDoc, bisimulation.Options{EnableLeaps: leaps})
		assert.True(t, result.Equivalent, "enableLeaps=%v", leaps)
	}
}

// etherTypeDocs builds Scenario E: the parsers agree on IPv4/IPv6 ethertypes
// and differ on everything else.
func etherTypeDocs() ([]byte, []byte) {
	build := func(fallback string) []byte {
		return pt.Document(
			pt.HeaderType("eth_t", pt.BitsField("type", 16)),
			pt.HeaderType("b_t", pt.BitsField("b", 8)),
			pt.StructType("headers", pt.NameField("eth", "eth_t"), pt.NameField("ip", "b_t")),
			pt.Parser("pkt", "h", "headers",
				pt.State("start",
					[]map[string]any{pt.ExtractCall("h", "eth")},
					pt.Select([]map[string]any{pt.Member("h", "eth", "type")},
						pt.Case(pt.Constant(0x0800), "parse_ip"),
						pt.Case(pt.Constant(0x86dd), "parse_ip"),
						pt.Case(pt.Default(), fallback))),
				pt.State("parse_ip",
					[]map[string]any{pt.ExtractCall("h", "ip")},
					pt.DirectTransition("accept"))),
		)
	}
	return build("accept"), build("reject")
}

// TestScenarioConstraintGuardedEquivalence suppresses the disagreement on
// non-IP ethertypes with a disagreeing filter.
func TestScenarioConstraintGuardedEquivalence(t *testing.T) {
	leftDoc, rightDoc := etherTypeDocs()

	without := runE2E(t, leftDoc, rightDoc, bisimulation.Options{EnableLeaps: true})
	assert.False(t, without.Equivalent)

	opts := bisimulation.Options{
		EnableLeaps:       true,
		FilterDisagreeing: mustCompile(t, "hdr_r.eth.type != 0x0800_16 and hdr_r.eth.type != 0x86dd_16"),
	}
	with := runE2E(t, leftDoc, rightDoc, opts)
	assert.True(t, with.Equivalent)
}

// assignmentDocs builds Scenario F: both parsers accept immediately after
// assigning the same constant to their store.
func assignmentDocs() ([]byte, []byte) {
	build := func() []byte {
		return pt.Document(
			pt.HeaderType("meta_t", pt.BitsField("tag", 8)),
			pt.StructType("headers", pt.NameField("m", "meta_t")),
			pt.Parser("pkt", "h", "headers",
				pt.State("start",
					[]map[string]any{pt.Assignment(pt.Member("h", "m", "tag"), pt.Constant(0x42))},
					pt.DirectTransition("accept"))),
		)
	}
	return build(), build()
}

// TestScenarioAcceptingRelation checks that a satisfiable accepting relation
// passes and an unsatisfiable one is reported.
func TestScenarioAcceptingRelation(t *testing.T) {
	leftDoc, rightDoc := assignmentDocs()

	good := bisimulation.Options{
		EnableLeaps:     true,
		FilterAccepting: mustCompile(t, "hdr_l.m.tag == hdr_r.m.tag"),
	}
	result := runE2E(t, leftDoc, rightDoc, good)
	assert.True(t, result.Equivalent)

	bad := bisimulation.Options{
		EnableLeaps:     true,
		FilterAccepting: mustCompile(t, "hdr_l.m.tag != hdr_r.m.tag"),
	}
	result = runE2E(t, leftDoc, rightDoc, bad)
	assert.False(t, result.Equivalent)
}

// TestScenarioLateSupply makes sure an extract larger than any single leap
// round is not rejected prematurely when leaps are disabled.
func TestScenarioLateSupply(t *testing.T) {
	result := runE2E(t, ethernetDoc(), ethernetDoc(), bisimulation.Options{EnableLeaps: false})
	assert.True(t, result.Equivalent)
}

