package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danielpatrickdp/potability/internal/ensemble"
)

// #region fixtures

const logisticJSON = `{
	"format": "potability-model/v1",
	"kind": "logistic_regression",
	"n_features": 3,
	"classes": [0, 1],
	"params": {"coef": [1, -2, 0.5], "intercept": -0.25}
}`

const scaledJSON = `{
	"format": "potability-model/v1",
	"kind": "linear_svc",
	"n_features": 2,
	"classes": [0, 1],
	"scaler": {"mean": [10, 0], "scale": [2, 1]},
	"params": {"coef": [1, 0], "intercept": 0}
}`

const rbfJSON = `{
	"format": "potability-model/v1",
	"kind": "svc",
	"n_features": 2,
	"classes": [0, 1],
	"params": {
		"kernel": "rbf",
		"gamma": 0.5,
		"support_vectors": [[0, 0], [4, 4]],
		"dual_coef": [1, -1],
		"intercept": 0
	}
}`

// A stump on feature 0 at 0.1: float32(0.1) is slightly above float64(0.1).
const treeJSON = `{
	"format": "potability-model/v1",
	"kind": "decision_tree",
	"n_features": 1,
	"classes": [0, 1],
	"params": {
		"children_left": [1, -1, -1],
		"children_right": [2, -1, -1],
		"feature": [0, -2, -2],
		"threshold": [0.1, -2, -2],
		"value": [[5, 5], [0, 5], [5, 0]]
	}
}`

const forestJSON = `{
	"format": "potability-model/v1",
	"kind": "random_forest",
	"n_features": 1,
	"classes": [0, 1],
	"params": {"estimators": [
		{"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2], "value": [[9, 1]]},
		{"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2], "value": [[1, 3]]},
		{"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2], "value": [[0, 20]]}
	]}
}`

func mustDecode(t *testing.T, src string) *Model {
	t.Helper()
	m, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func predict(t *testing.T, m *Model, x ...float64) ensemble.Label {
	t.Helper()
	l, err := m.Predict(context.Background(), x)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	return l
}

// #endregion fixtures

// #region linear-tests

func TestLogistic_DecisionBoundary(t *testing.T) {
	m := mustDecode(t, logisticJSON)
	if m.Kind() != KindLogisticRegression || m.NFeatures() != 3 {
		t.Fatalf("unexpected model header %s/%d", m.Kind(), m.NFeatures())
	}
	if got := predict(t, m, 1, 0, 0); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := predict(t, m, 0, 1, 0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	// Exactly zero decision is the negative class.
	if got := predict(t, m, 0.25, 0, 0); got != 0 {
		t.Errorf("expected 0 on the boundary, got %d", got)
	}
}

func TestLinear_AppliesScaler(t *testing.T) {
	m := mustDecode(t, scaledJSON)
	if got := predict(t, m, 12, 0); got != 1 {
		t.Errorf("expected 1 above the mean, got %d", got)
	}
	if got := predict(t, m, 8, 100); got != 0 {
		t.Errorf("expected 0 below the mean, got %d", got)
	}
}

func TestSVC_RBF(t *testing.T) {
	m := mustDecode(t, rbfJSON)
	if got := predict(t, m, 0.5, 0.5); got != 1 {
		t.Errorf("expected 1 near the positive support vector, got %d", got)
	}
	if got := predict(t, m, 3.5, 4); got != 0 {
		t.Errorf("expected 0 near the negative support vector, got %d", got)
	}
}

// #endregion linear-tests

// #region tree-tests

func TestTree_Float32Comparison(t *testing.T) {
	m := mustDecode(t, treeJSON)
	if got := predict(t, m, 0.1); got != 0 {
		// float32(0.1) > 0.1, so sklearn routes this sample right.
		t.Errorf("expected right branch (0) for 0.1, got %d", got)
	}
	if got := predict(t, m, 0.09); got != 1 {
		t.Errorf("expected left branch (1), got %d", got)
	}
}

func TestForest_AveragesProbabilities(t *testing.T) {
	m := mustDecode(t, forestJSON)
	// Per-tree class-1 probabilities 0.1, 0.75, 1.0 average to 0.6167.
	if got := predict(t, m, 0); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestArgmax_FirstWinsTies(t *testing.T) {
	if argmax([]float64{0.5, 0.5}) != 0 {
		t.Error("expected first index on ties")
	}
}

// #endregion tree-tests

// #region error-tests

func TestPredict_FeatureCountMismatch(t *testing.T) {
	m := mustDecode(t, logisticJSON)
	_, err := m.Predict(context.Background(), []float64{1, 2})
	if !errors.Is(err, ErrFeatureCount) {
		t.Fatalf("expected ErrFeatureCount, got %v", err)
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"format":      strings.Replace(logisticJSON, "potability-model/v1", "v0", 1),
		"kind":        strings.Replace(logisticJSON, "logistic_regression", "xgboost", 1),
		"coef width":  strings.Replace(logisticJSON, "[1, -2, 0.5]", "[1, -2]", 1),
		"classes":     strings.Replace(logisticJSON, "[0, 1]", "[1]", 1),
		"tree cycle":  strings.Replace(treeJSON, `"children_left": [1, -1, -1]`, `"children_left": [0, -1, -1]`, 1),
		"tree values": strings.Replace(treeJSON, "[0, 5]", "[0]", 1),
		"kernel":      strings.Replace(rbfJSON, `"rbf"`, `"precomputed"`, 1),
		"zero scale":  strings.Replace(scaledJSON, `"scale": [2, 1]`, `"scale": [2, 0]`, 1),
	}
	for name, src := range cases {
		_, err := Decode(strings.NewReader(src))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", name, err)
		}
	}

	if _, err := DecodeBytes([]byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	unknown := strings.Replace(logisticJSON, `"kind"`, `"extra": 1, "kind"`, 1)
	if _, err := DecodeBytes([]byte(unknown)); err == nil {
		t.Error("expected error for unknown envelope field")
	}
}

// #endregion error-tests
