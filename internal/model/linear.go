package model

import (
	"fmt"
	"math"
)

// #region linear

// linear covers LogisticRegression and LinearSVC: w·x + b > 0 picks classes[1].
type linear struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (l *linear) check(nFeatures, nClasses int) error {
	if nClasses != 2 {
		return fmt.Errorf("binary only, got %d classes", nClasses)
	}
	if len(l.Coef) != nFeatures {
		return fmt.Errorf("coef has %d weights, want %d", len(l.Coef), nFeatures)
	}
	return nil
}

func (l *linear) classIndex(x []float64) int {
	if dot(l.Coef, x)+l.Intercept > 0 {
		return 1
	}
	return 0
}

// #endregion linear

// #region svc

// svc is a kernel SVC in sklearn's binary dual form.
type svc struct {
	Kernel         string      `json:"kernel"`
	Gamma          float64     `json:"gamma"`
	Coef0          float64     `json:"coef0"`
	Degree         int         `json:"degree"`
	SupportVectors [][]float64 `json:"support_vectors"`
	DualCoef       []float64   `json:"dual_coef"`
	Intercept      float64     `json:"intercept"`
}

func (s *svc) check(nFeatures, nClasses int) error {
	if nClasses != 2 {
		return fmt.Errorf("binary only, got %d classes", nClasses)
	}
	switch s.Kernel {
	case "linear", "rbf", "poly", "sigmoid":
	default:
		return fmt.Errorf("unsupported kernel %q", s.Kernel)
	}
	if len(s.SupportVectors) == 0 {
		return fmt.Errorf("no support vectors")
	}
	if len(s.DualCoef) != len(s.SupportVectors) {
		return fmt.Errorf("%d dual coefficients for %d support vectors", len(s.DualCoef), len(s.SupportVectors))
	}
	for i, sv := range s.SupportVectors {
		if len(sv) != nFeatures {
			return fmt.Errorf("support vector %d has width %d, want %d", i, len(sv), nFeatures)
		}
	}
	return nil
}

func (s *svc) classIndex(x []float64) int {
	var sum float64
	for i, sv := range s.SupportVectors {
		sum += s.DualCoef[i] * s.kernel(sv, x)
	}
	if sum+s.Intercept > 0 {
		return 1
	}
	return 0
}

func (s *svc) kernel(a, b []float64) float64 {
	switch s.Kernel {
	case "rbf":
		var d float64
		for i := range a {
			diff := a[i] - b[i]
			d += diff * diff
		}
		return math.Exp(-s.Gamma * d)
	case "poly":
		return math.Pow(s.Gamma*dot(a, b)+s.Coef0, float64(s.Degree))
	case "sigmoid":
		return math.Tanh(s.Gamma*dot(a, b) + s.Coef0)
	default:
		return dot(a, b)
	}
}

// #endregion svc

// #region helpers

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// #endregion helpers
