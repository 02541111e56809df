package eval

import (
	"context"
	"fmt"
	"math"

	"github.com/danielpatrickdp/potability/internal/bundle"
	"github.com/danielpatrickdp/potability/internal/ensemble"
	"github.com/danielpatrickdp/potability/internal/params"
)

// Inferer is the part of ensemble.Context the harness needs.
type Inferer interface {
	Infer(ctx context.Context, s params.Set) (ensemble.Result, error)
}

// #region eval-harness
// EvalHarness re-runs recorded probe cases against a freshly built pipeline.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run executes every probe and compares verdicts (and votes when recorded).
// Every probe is run even after a failure so the result lists all of them.
func (h *EvalHarness) Run(ctx context.Context, p Inferer, probes []bundle.Probe) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	if len(probes) == 0 && h.config.RequireProbes {
		return EvalResult{Passed: false, Reason: "eval failed: bundle has no probes"}
	}

	for i, probe := range probes {
		name := probe.Name
		if name == "" {
			name = fmt.Sprintf("probe_%d", i)
		}

		res, err := p.Infer(ctx, probeSet(probe.Params))
		got := string(res.Verdict)
		switch {
		case err != nil:
			got = "error: " + err.Error()
		case !res.Valid():
			got = fmt.Sprintf("rejected: %s", res.Violations.Messages()[0])
		}

		verdictPass := err == nil && res.Valid() && got == probe.Verdict
		metrics = append(metrics, EvalMetric{
			Name:     name + "_verdict",
			Expected: probe.Verdict,
			Got:      got,
			Pass:     verdictPass,
		})
		if !verdictPass {
			failReasons = append(failReasons, fmt.Sprintf("%s: expected %q, got %q", name, probe.Verdict, got))
		}

		if !h.config.CheckVotes || len(probe.Votes) == 0 || err != nil || !res.Valid() {
			continue
		}
		want, have := fmt.Sprint(probe.Votes), fmt.Sprint(voteInts(res.Votes))
		votesPass := want == have
		metrics = append(metrics, EvalMetric{
			Name:     name + "_votes",
			Expected: want,
			Got:      have,
			Pass:     votesPass,
		})
		if !votesPass {
			failReasons = append(failReasons, fmt.Sprintf("%s: votes expected %s, got %s", name, want, have))
		}
	}

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
// probeSet copies probe params into a parameter set. Parameters absent from
// the probe are undefined.
func probeSet(in map[string]float64) params.Set {
	s := make(params.Set, params.Count)
	for _, name := range params.Names() {
		s[name] = math.NaN()
	}
	for k, v := range in {
		s[k] = v
	}
	return s
}

func voteInts(v ensemble.Votes) []int {
	out := make([]int, len(v))
	for i, l := range v {
		out[i] = int(l)
	}
	return out
}

// #endregion helpers
