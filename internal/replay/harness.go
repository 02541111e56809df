package replay

import (
	"context"
	"fmt"
	"slices"

	"github.com/danielpatrickdp/potability/internal/ensemble"
	"github.com/danielpatrickdp/potability/internal/params"
)

// Inferer is the pipeline capability replay needs.
type Inferer interface {
	Infer(ctx context.Context, s params.Set) (ensemble.Result, error)
}

// #region types

// Case is a single recorded request with its expected outcome.
type Case struct {
	Name               string
	Params             params.Set
	ExpectedVerdict    string
	ExpectedViolations []string
}

// ReplayResult captures the outcome of replaying one case.
type ReplayResult struct {
	Name     string
	Action   string // "match" | "mismatch" | "error"
	Rejected bool
	Expected string
	Got      string
	Votes    ensemble.Votes
	Reason   string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalCases int
	Matches    int
	Mismatches int
	Rejections int
	Errors     int
}

// Passed reports whether every case matched.
func (s ReplaySummary) Passed() bool {
	return s.Mismatches == 0 && s.Errors == 0
}

// #endregion types

// #region replay

// Replay runs every case through the pipeline in order and compares the
// outcome with what was recorded.
func Replay(ctx context.Context, p Inferer, cases []Case) []ReplayResult {
	results := make([]ReplayResult, 0, len(cases))

	for i, c := range cases {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("case_%d", i)
		}
		expected := describeExpected(c)

		res, err := p.Infer(ctx, c.Params)
		if err != nil {
			results = append(results, ReplayResult{
				Name:     name,
				Action:   "error",
				Expected: expected,
				Reason:   err.Error(),
			})
			continue
		}

		r := ReplayResult{
			Name:     name,
			Rejected: !res.Valid(),
			Expected: expected,
			Votes:    res.Votes,
		}
		var match bool
		if res.Valid() {
			r.Got = string(res.Verdict)
			match = len(c.ExpectedViolations) == 0 && r.Got == c.ExpectedVerdict
		} else {
			got := res.Violations.Messages()
			r.Got = fmt.Sprint(got)
			match = c.ExpectedVerdict == "" && slices.Equal(got, c.ExpectedViolations)
		}

		r.Action = "match"
		if !match {
			r.Action = "mismatch"
			r.Reason = fmt.Sprintf("expected %s, got %s", expected, r.Got)
		}
		results = append(results, r)
	}

	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalCases: len(results)}
	for _, r := range results {
		switch r.Action {
		case "match":
			s.Matches++
		case "mismatch":
			s.Mismatches++
		case "error":
			s.Errors++
		}
		if r.Rejected {
			s.Rejections++
		}
	}
	return s
}

func describeExpected(c Case) string {
	if len(c.ExpectedViolations) > 0 {
		return fmt.Sprint(c.ExpectedViolations)
	}
	return c.ExpectedVerdict
}

// #endregion replay
