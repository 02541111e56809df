package model

import "fmt"

const leaf = -1

// #region tree

// tree mirrors sklearn's Tree arrays. Leaves have children_left == -1.
type tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

func (t *tree) check(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		if len(t.Value[i]) != nClasses {
			return fmt.Errorf("node %d has %d class values, want %d", i, len(t.Value[i]), nClasses)
		}
		if t.ChildrenLeft[i] == leaf {
			continue
		}
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		// sklearn stores children after their parent, which also rules out cycles.
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", i, f)
		}
	}
	return nil
}

// leafValue walks to a leaf. Features are compared as float32, matching
// sklearn's tree input dtype.
func (t *tree) leafValue(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if float64(float32(x[t.Feature[node]])) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

func (t *tree) classIndex(x []float64) int {
	return argmax(t.leafValue(x))
}

// #endregion tree

// #region forest

// forest averages the normalized leaf distributions of its trees.
type forest struct {
	Estimators []tree `json:"estimators"`
}

func (f *forest) check(nFeatures, nClasses int) error {
	if len(f.Estimators) == 0 {
		return fmt.Errorf("no estimators")
	}
	for i := range f.Estimators {
		if err := f.Estimators[i].check(nFeatures, nClasses); err != nil {
			return fmt.Errorf("estimator %d: %w", i, err)
		}
	}
	return nil
}

func (f *forest) classIndex(x []float64) int {
	var proba []float64
	for i := range f.Estimators {
		v := f.Estimators[i].leafValue(x)
		if proba == nil {
			proba = make([]float64, len(v))
		}
		var total float64
		for _, c := range v {
			total += c
		}
		if total == 0 {
			continue
		}
		for j, c := range v {
			proba[j] += c / total
		}
	}
	return argmax(proba)
}

// #endregion forest

// #region helpers

// argmax returns the first index of the largest value, like numpy.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// #endregion helpers
