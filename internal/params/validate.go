package params

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// #region types

// Set maps every parameter name to a measured value. Undefined measurements
// are carried as NaN.
type Set map[string]float64

// Vector is a Set projected into canonical column order.
type Vector [Count]float64

// ViolationKind enumerates why a parameter failed validation.
type ViolationKind string

const (
	ViolationNaN   ViolationKind = "nan"
	ViolationRange ViolationKind = "out_of_range"
)

// Violation is one failed parameter check.
type Violation struct {
	Parameter Parameter
	Kind      ViolationKind
	Message   string
}

// Violations is the ordered result of Validate. Empty means valid.
type Violations []Violation

// Messages returns the human-readable messages in registry order.
func (v Violations) Messages() []string {
	out := make([]string, len(v))
	for i, x := range v {
		out[i] = x.Message
	}
	return out
}

// #endregion types

// #region shape-error

// ErrShape marks a parameter set that does not carry exactly the registry keys.
var ErrShape = errors.New("malformed parameter set")

// ShapeError lists every missing and unexpected key of a parameter set.
type ShapeError struct {
	Missing    []string
	Unexpected []string
}

func (e *ShapeError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrShape, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrShape) hold for any *ShapeError.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}

// CheckShape verifies that s holds exactly the registry keys.
func CheckShape(s Set) error {
	var shapeErr ShapeError
	for _, d := range registry {
		if _, ok := s[d.Name]; !ok {
			shapeErr.Missing = append(shapeErr.Missing, d.Name)
		}
	}
	for name := range s {
		if _, ok := byName[name]; !ok {
			shapeErr.Unexpected = append(shapeErr.Unexpected, name)
		}
	}
	if len(shapeErr.Missing) == 0 && len(shapeErr.Unexpected) == 0 {
		return nil
	}
	sort.Strings(shapeErr.Unexpected)
	return &shapeErr
}

// #endregion shape-error

// #region validate

// Validate checks every parameter of s in registry order and collects all
// violations. A non-nil error means the set is malformed and no range checks ran.
func Validate(s Set) (Violations, error) {
	if err := CheckShape(s); err != nil {
		return nil, err
	}

	var out Violations
	for _, p := range All() {
		v := s[p.String()]
		if math.IsNaN(v) {
			out = append(out, Violation{
				Parameter: p,
				Kind:      ViolationNaN,
				Message:   fmt.Sprintf("%s contains NaN value.", p.Label()),
			})
			continue
		}
		if !p.Contains(v) {
			d := p.Definition()
			out = append(out, Violation{
				Parameter: p,
				Kind:      ViolationRange,
				Message: fmt.Sprintf("%s is out of range (%s - %s).",
					p.Label(), formatBound(d.Min), formatBound(d.Max)),
			})
		}
	}
	return out, nil
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// #endregion validate

// #region project

// Project lays s out in canonical column order. s must have passed CheckShape.
func Project(s Set) Vector {
	var v Vector
	for i, d := range registry {
		v[i] = s[d.Name]
	}
	return v
}

// Slice returns the vector as a fresh slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// #endregion project
