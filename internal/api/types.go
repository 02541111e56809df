package api

import (
	"math"

	"github.com/danielpatrickdp/potability/internal/ensemble"
	"github.com/danielpatrickdp/potability/internal/params"
)

// #region request

// MeasurementRequest is the JSON body of /v1/validate and /v1/predict.
// A null value means the measurement is undefined.
type MeasurementRequest map[string]*float64

// Set converts the request into a parameter set, null becoming NaN.
func (r MeasurementRequest) Set() params.Set {
	s := make(params.Set, len(r))
	for k, v := range r {
		if v == nil {
			s[k] = math.NaN()
			continue
		}
		s[k] = *v
	}
	return s
}

// #endregion request

// #region responses

// ViolationBody is one failed check in a response.
type ViolationBody struct {
	Parameter string `json:"parameter"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// VoteBody is one base model's prediction.
type VoteBody struct {
	Column string `json:"column"`
	Model  string `json:"model"`
	Label  int    `json:"label"`
}

// PredictResponse is returned for a valid request. Votes are in meta column
// order, Model1 first.
type PredictResponse struct {
	RequestID string     `json:"request_id"`
	Verdict   string     `json:"verdict"`
	Label     int        `json:"label"`
	Votes     []VoteBody `json:"votes"`
}

// ViolationsResponse is returned when one or more parameters are invalid.
type ViolationsResponse struct {
	RequestID  string          `json:"request_id"`
	Valid      bool            `json:"valid"`
	Violations []ViolationBody `json:"violations"`
}

// ErrorResponse is returned for malformed requests and internal failures.
type ErrorResponse struct {
	RequestID  string   `json:"request_id"`
	Error      string   `json:"error"`
	Missing    []string `json:"missing,omitempty"`
	Unexpected []string `json:"unexpected,omitempty"`
}

func violationBodies(v params.Violations) []ViolationBody {
	out := make([]ViolationBody, len(v))
	for i, x := range v {
		out[i] = ViolationBody{
			Parameter: x.Parameter.String(),
			Kind:      string(x.Kind),
			Message:   x.Message,
		}
	}
	return out
}

func voteBody(v ensemble.Votes) []VoteBody {
	out := make([]VoteBody, 0, len(v))
	for _, s := range ensemble.Slots() {
		out = append(out, VoteBody{Column: s.Column(), Model: s.ArtifactName(), Label: int(v[s])})
	}
	return out
}

// #endregion responses
