package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/danielpatrickdp/potability/internal/params"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureCase is one recorded request.
// Exactly one of ExpectedVerdict or ExpectedViolations is set.
type FixtureCase struct {
	Name               string                 `json:"name"`
	Params             map[string]Measurement `json:"params"`
	ExpectedVerdict    string                 `json:"expected_verdict,omitempty"`
	ExpectedViolations []string               `json:"expected_violations,omitempty"`
}

// Measurement is a fixture parameter value. JSON null is undefined (NaN) and
// the strings "inf" and "-inf" carry infinities, which plain JSON numbers
// cannot.
type Measurement float64

// MarshalJSON implements json.Marshaler.
func (m Measurement) MarshalJSON() ([]byte, error) {
	v := float64(m)
	switch {
	case math.IsNaN(v):
		return []byte("null"), nil
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Measurement(math.NaN())
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(s) {
		case "inf", "+inf":
			*m = Measurement(math.Inf(1))
		case "-inf":
			*m = Measurement(math.Inf(-1))
		default:
			return fmt.Errorf("measurement: unsupported string %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("measurement: %w", err)
	}
	*m = Measurement(v)
	return nil
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToCases converts every fixture case to a domain Case.
func (f *Fixture) ToCases() []Case {
	out := make([]Case, len(f.Cases))
	for i := range f.Cases {
		out[i] = f.Cases[i].ToCase()
	}
	return out
}

// ToCase converts a FixtureCase to a domain Case.
func (fc *FixtureCase) ToCase() Case {
	set := make(params.Set, len(fc.Params))
	for k, v := range fc.Params {
		set[k] = float64(v)
	}
	return Case{
		Name:               fc.Name,
		Params:             set,
		ExpectedVerdict:    fc.ExpectedVerdict,
		ExpectedViolations: fc.ExpectedViolations,
	}
}

// fixtureParams is the inverse of ToCase's conversion.
func fixtureParams(s params.Set) map[string]Measurement {
	out := make(map[string]Measurement, len(s))
	for k, v := range s {
		out[k] = Measurement(v)
	}
	return out
}

// #endregion fixture-loader
