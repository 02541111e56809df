package params

import "strings"

// #region parameter

// Parameter identifies one water-quality measurement. The iota order is the
// feature-column order the models were trained on and must not change.
type Parameter int

const (
	PH Parameter = iota
	Hardness
	Turbidity
	Arsenic
	Chloramine
	Bacteria
	Lead
	Nitrates
	Mercury

	numParameters
)

// Count is the number of registered parameters (the feature vector length).
const Count = int(numParameters)

// #endregion parameter

// #region definition

// Definition describes the accepted inclusive range and display unit of a parameter.
type Definition struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

var registry = [Count]Definition{
	PH:         {Name: "ph", Min: 0, Max: 14, Unit: "pH units"},
	Hardness:   {Name: "hardness", Min: 0, Max: 1000, Unit: "mg/L (as CaCO3)"},
	Turbidity:  {Name: "turbidity", Min: 0, Max: 100, Unit: "NTU"},
	Arsenic:    {Name: "arsenic", Min: 0, Max: 1, Unit: "mg/L"},
	Chloramine: {Name: "chloramine", Min: 0, Max: 10, Unit: "mg/L"},
	Bacteria:   {Name: "bacteria", Min: 0, Max: 1000, Unit: "CFU/100 mL"},
	Lead:       {Name: "lead", Min: 0, Max: 1, Unit: "mg/L"},
	Nitrates:   {Name: "nitrates", Min: 0, Max: 100, Unit: "mg/L"},
	Mercury:    {Name: "mercury", Min: 0, Max: 1, Unit: "mg/L"},
}

var byName = func() map[string]Parameter {
	m := make(map[string]Parameter, Count)
	for i, d := range registry {
		m[d.Name] = Parameter(i)
	}
	return m
}()

// #endregion definition

// #region lookup

// Definition returns the registry entry for p.
func (p Parameter) Definition() Definition {
	return registry[p]
}

// String returns the canonical parameter name.
func (p Parameter) String() string {
	if p < 0 || p >= numParameters {
		return "unknown"
	}
	return registry[p].Name
}

// Label is the display form used in messages ("ph" -> "Ph").
func (p Parameter) Label() string {
	name := p.String()
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}

// Contains reports whether v lies inside the inclusive range of p.
func (p Parameter) Contains(v float64) bool {
	d := registry[p]
	return v >= d.Min && v <= d.Max
}

// All returns every parameter in canonical order.
func All() []Parameter {
	out := make([]Parameter, Count)
	for i := range out {
		out[i] = Parameter(i)
	}
	return out
}

// Names returns the parameter names in canonical order.
func Names() []string {
	out := make([]string, Count)
	for i, d := range registry {
		out[i] = d.Name
	}
	return out
}

// Definitions returns a copy of the registry in canonical order.
func Definitions() []Definition {
	out := make([]Definition, Count)
	copy(out, registry[:])
	return out
}

// Lookup resolves a parameter by its canonical name.
func Lookup(name string) (Parameter, bool) {
	p, ok := byName[name]
	return p, ok
}

// #endregion lookup
