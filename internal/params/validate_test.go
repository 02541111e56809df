package params

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

// #region helpers

// cleanSet is a mid-range reading for every parameter.
func cleanSet() Set {
	return Set{
		"ph":         7,
		"hardness":   150,
		"turbidity":  2,
		"arsenic":    0.005,
		"chloramine": 2,
		"bacteria":   10,
		"lead":       0.005,
		"nitrates":   5,
		"mercury":    0.0005,
	}
}

// #endregion helpers

// #region registry-tests

func TestRegistry_CanonicalOrder(t *testing.T) {
	want := []string{"ph", "hardness", "turbidity", "arsenic", "chloramine", "bacteria", "lead", "nitrates", "mercury"}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i, p := range All() {
		if int(p) != i {
			t.Errorf("expected parameter %d at index %d", p, i)
		}
	}
}

func TestRegistry_RangesAreOrdered(t *testing.T) {
	for _, d := range Definitions() {
		if !(d.Min < d.Max) {
			t.Errorf("%s: expected min < max, got %v >= %v", d.Name, d.Min, d.Max)
		}
		if d.Unit == "" {
			t.Errorf("%s: expected a unit", d.Name)
		}
	}
}

func TestRegistry_DefinitionsIsACopy(t *testing.T) {
	defs := Definitions()
	defs[0].Max = 99
	if PH.Definition().Max != 14 {
		t.Fatal("mutating the returned slice must not touch the registry")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	p, ok := Lookup("mercury")
	if !ok || p != Mercury {
		t.Fatalf("expected Mercury, got %v ok=%v", p, ok)
	}
	if _, ok := Lookup("Mercury"); ok {
		t.Error("lookup is case-sensitive")
	}
}

func TestParameter_Label(t *testing.T) {
	if PH.Label() != "Ph" {
		t.Errorf("expected 'Ph', got %q", PH.Label())
	}
	if Chloramine.Label() != "Chloramine" {
		t.Errorf("expected 'Chloramine', got %q", Chloramine.Label())
	}
}

// #endregion registry-tests

// #region validate-tests

func TestValidate_AllInRange(t *testing.T) {
	v, err := Validate(cleanSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v) != 0 {
		t.Fatalf("expected no violations, got %v", v.Messages())
	}
}

func TestValidate_BoundsAreInclusive(t *testing.T) {
	for _, d := range Definitions() {
		for _, edge := range []float64{d.Min, d.Max} {
			s := cleanSet()
			s[d.Name] = edge
			v, err := Validate(s)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(v) != 0 {
				t.Errorf("%s=%v: expected pass, got %v", d.Name, edge, v.Messages())
			}
		}
	}
}

func TestValidate_JustAboveMax(t *testing.T) {
	s := cleanSet()
	s["ph"] = 14.0001
	v, _ := Validate(s)
	if len(v) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(v))
	}
	if v[0].Message != "Ph is out of range (0 - 14)." {
		t.Errorf("unexpected message %q", v[0].Message)
	}
}

func TestValidate_SingleOutOfRange(t *testing.T) {
	for _, d := range Definitions() {
		s := cleanSet()
		s[d.Name] = d.Max + 1
		v, _ := Validate(s)
		if len(v) != 1 {
			t.Fatalf("%s: expected 1 violation, got %d", d.Name, len(v))
		}
		if v[0].Parameter.String() != d.Name || v[0].Kind != ViolationRange {
			t.Errorf("%s: unexpected violation %+v", d.Name, v[0])
		}
	}

	s := cleanSet()
	s["hardness"] = -1
	v, _ := Validate(s)
	if v[0].Message != "Hardness is out of range (0 - 1000)." {
		t.Errorf("unexpected message %q", v[0].Message)
	}
}

func TestValidate_NaNDoesNotAlsoReportRange(t *testing.T) {
	s := cleanSet()
	s["mercury"] = math.NaN()
	v, _ := Validate(s)
	if len(v) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(v))
	}
	if v[0].Kind != ViolationNaN {
		t.Errorf("expected NaN violation, got %s", v[0].Kind)
	}
	if v[0].Message != "Mercury contains NaN value." {
		t.Errorf("unexpected message %q", v[0].Message)
	}
}

func TestValidate_MultipleViolationsInRegistryOrder(t *testing.T) {
	s := cleanSet()
	s["mercury"] = math.NaN()
	s["ph"] = 20
	s["lead"] = 2
	s["turbidity"] = math.NaN()

	v, err := Validate(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"Ph is out of range (0 - 14).",
		"Turbidity contains NaN value.",
		"Lead is out of range (0 - 1).",
		"Mercury contains NaN value.",
	}
	if got := v.Messages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestValidate_InfinityIsOutOfRange(t *testing.T) {
	s := cleanSet()
	s["nitrates"] = math.Inf(1)
	v, _ := Validate(s)
	if len(v) != 1 || v[0].Kind != ViolationRange {
		t.Fatalf("expected one range violation, got %+v", v)
	}
}

func TestValidate_ShapeErrors(t *testing.T) {
	s := cleanSet()
	delete(s, "lead")
	s["zinc"] = 1

	v, err := Validate(s)
	if err == nil {
		t.Fatal("expected shape error")
	}
	if v != nil {
		t.Error("expected no violations alongside a shape error")
	}
	if !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected *ShapeError, got %T", err)
	}
	if !reflect.DeepEqual(shapeErr.Missing, []string{"lead"}) {
		t.Errorf("unexpected missing keys %v", shapeErr.Missing)
	}
	if !reflect.DeepEqual(shapeErr.Unexpected, []string{"zinc"}) {
		t.Errorf("unexpected extra keys %v", shapeErr.Unexpected)
	}
}

func TestValidate_EmptySetIsShapeError(t *testing.T) {
	_, err := Validate(Set{})
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected *ShapeError, got %v", err)
	}
	if len(shapeErr.Missing) != Count {
		t.Errorf("expected %d missing keys, got %d", Count, len(shapeErr.Missing))
	}
}

// #endregion validate-tests

// #region project-tests

func TestProject_CanonicalOrder(t *testing.T) {
	v := Project(cleanSet())
	want := Vector{7, 150, 2, 0.005, 2, 10, 0.005, 5, 0.0005}
	if v != want {
		t.Fatalf("expected %v, got %v", want, v)
	}
	sl := v.Slice()
	sl[0] = 99
	if v[0] != 7 {
		t.Error("Slice must return a copy")
	}
}

// #endregion project-tests
