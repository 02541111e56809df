package eval

// #region eval-config
// EvalConfig controls how strictly probes are checked.
type EvalConfig struct {
	CheckVotes    bool // compare recorded base votes as well as the verdict
	RequireProbes bool // fail when the bundle carries no probes
}

// DefaultEvalConfig checks votes and tolerates bundles without probes.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		CheckVotes:    true,
		RequireProbes: false,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single probe check.
type EvalMetric struct {
	Name     string
	Expected string
	Got      string
	Pass     bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of a probe run.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
