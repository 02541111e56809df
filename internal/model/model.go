// Package model evaluates exported scikit-learn classifiers natively.
//
// Artifacts are JSON envelopes produced by the export script next to the
// training notebook. Each kind reproduces the decision rule of the estimator
// it was exported from, so predictions match the original joblib models.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/danielpatrickdp/potability/internal/ensemble"
)

// Format is the envelope version this package reads.
const Format = "potability-model/v1"

// #region kinds

// Kind names an estimator family.
type Kind string

const (
	KindLogisticRegression Kind = "logistic_regression"
	KindLinearSVC          Kind = "linear_svc"
	KindSVC                Kind = "svc"
	KindDecisionTree       Kind = "decision_tree"
	KindRandomForest       Kind = "random_forest"
)

// #endregion kinds

// #region errors

// ErrFeatureCount is returned when a vector's length differs from the artifact's.
var ErrFeatureCount = errors.New("feature count mismatch")

// ErrMalformed is returned for artifacts that decode but are internally inconsistent.
var ErrMalformed = errors.New("malformed artifact")

// #endregion errors

// #region envelope

type envelope struct {
	Format    string          `json:"format"`
	Kind      Kind            `json:"kind"`
	NFeatures int             `json:"n_features"`
	Classes   []int           `json:"classes"`
	Scaler    *Scaler         `json:"scaler,omitempty"`
	Params    json.RawMessage `json:"params"`
}

// Scaler standardizes features before evaluation: (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *Scaler) apply(x []float64) []float64 {
	if s == nil {
		return x
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out
}

// #endregion envelope

// #region model

// evaluator returns a class index for an already scaled row.
type evaluator interface {
	classIndex(x []float64) int
	check(nFeatures, nClasses int) error
}

// Model is a decoded artifact. It is immutable and safe for concurrent use.
type Model struct {
	kind      Kind
	nFeatures int
	classes   []int
	scaler    *Scaler
	eval      evaluator
}

// Kind reports the estimator family.
func (m *Model) Kind() Kind { return m.kind }

// NFeatures reports the input width the model was trained on.
func (m *Model) NFeatures() int { return m.nFeatures }

// Predict implements ensemble.Predictor.
func (m *Model) Predict(_ context.Context, features []float64) (ensemble.Label, error) {
	if len(features) != m.nFeatures {
		return 0, fmt.Errorf("%w: want %d, got %d", ErrFeatureCount, m.nFeatures, len(features))
	}
	idx := m.eval.classIndex(m.scaler.apply(features))
	return ensemble.Label(m.classes[idx]), nil
}

// #endregion model

// #region decode

// Decode reads one artifact envelope.
func Decode(r io.Reader) (*Model, error) {
	var env envelope
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Format != Format {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrMalformed, env.Format)
	}
	if env.NFeatures <= 0 {
		return nil, fmt.Errorf("%w: n_features must be positive", ErrMalformed)
	}
	if len(env.Classes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 classes, got %d", ErrMalformed, len(env.Classes))
	}
	if s := env.Scaler; s != nil && (len(s.Mean) != env.NFeatures || len(s.Scale) != env.NFeatures) {
		return nil, fmt.Errorf("%w: scaler width differs from n_features", ErrMalformed)
	}
	if s := env.Scaler; s != nil {
		for i, v := range s.Scale {
			if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: scaler scale[%d] is %v", ErrMalformed, i, v)
			}
		}
	}

	var ev evaluator
	switch env.Kind {
	case KindLogisticRegression, KindLinearSVC:
		ev = &linear{}
	case KindSVC:
		ev = &svc{}
	case KindDecisionTree:
		ev = &tree{}
	case KindRandomForest:
		ev = &forest{}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, env.Kind)
	}
	if err := json.Unmarshal(env.Params, ev); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", env.Kind, err)
	}
	if err := ev.check(env.NFeatures, len(env.Classes)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Kind, err)
	}

	return &Model{
		kind:      env.Kind,
		nFeatures: env.NFeatures,
		classes:   env.Classes,
		scaler:    env.Scaler,
		eval:      ev,
	}, nil
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(b []byte) (*Model, error) {
	return Decode(bytes.NewReader(b))
}

// #endregion decode
