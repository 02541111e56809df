package ensemble

import (
	"context"
	"strconv"
	"time"

	"github.com/danielpatrickdp/potability/internal/params"
)

// #region label

// Label is a classifier output. The trained models emit 0 or 1.
type Label int

// LabelSafe is the only label that maps to a Safe verdict.
const LabelSafe Label = 1

// #endregion label

// #region verdict

// Verdict is the human-readable outcome of a prediction.
type Verdict string

const (
	VerdictSafe    Verdict = "Safe"
	VerdictNotSafe Verdict = "Not Safe"
)

// VerdictFor maps a meta label to a verdict. Anything other than 1 is Not Safe.
func VerdictFor(l Label) Verdict {
	if l == LabelSafe {
		return VerdictSafe
	}
	return VerdictNotSafe
}

// #endregion verdict

// #region predictor

// Predictor maps a feature vector to a label. Implementations are loaded
// once and must be safe for concurrent use.
type Predictor interface {
	Predict(ctx context.Context, features []float64) (Label, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, features []float64) (Label, error)

// Predict calls f.
func (f PredictorFunc) Predict(ctx context.Context, features []float64) (Label, error) {
	return f(ctx, features)
}

// #endregion predictor

// #region slot

// Slot fixes the position of a base predictor in the base prediction vector.
// The order matches the column order the meta model was trained on.
type Slot int

const (
	SlotLogistic Slot = iota
	SlotSVM
	SlotTree
	SlotForest

	NumSlots
)

var slotArtifacts = [NumSlots]string{
	SlotLogistic: "lr",
	SlotSVM:      "svm",
	SlotTree:     "tree",
	SlotForest:   "forest",
}

// MetaArtifact is the artifact name of the stacking model.
const MetaArtifact = "meta"

// Slots returns the base slots in meta-input order.
func Slots() []Slot {
	return []Slot{SlotLogistic, SlotSVM, SlotTree, SlotForest}
}

// ArtifactName is the artifact file stem of the slot's model.
func (s Slot) ArtifactName() string {
	if s < 0 || s >= NumSlots {
		return ""
	}
	return slotArtifacts[s]
}

// Column is the meta-model input column name ("Model1".."Model4").
func (s Slot) Column() string {
	return "Model" + strconv.Itoa(int(s)+1)
}

func (s Slot) String() string {
	return s.ArtifactName()
}

// ArtifactNames lists every artifact the ensemble needs, base slots first.
func ArtifactNames() []string {
	out := make([]string, 0, NumSlots+1)
	for _, s := range Slots() {
		out = append(out, s.ArtifactName())
	}
	return append(out, MetaArtifact)
}

// #endregion slot

// #region base-set

// BaseSet holds one predictor per slot.
type BaseSet [NumSlots]Predictor

// Votes is the base prediction vector, indexed by Slot.
type Votes [NumSlots]Label

// MetaFeatures lays the votes out as the meta model's input row.
func MetaFeatures(v Votes) []float64 {
	out := make([]float64, NumSlots)
	for i, l := range v {
		out[i] = float64(l)
	}
	return out
}

// #endregion base-set

// #region result

// Result is the outcome of one Infer call. Exactly one of Verdict or
// Violations is set.
type Result struct {
	Verdict    Verdict
	Label      Label
	Votes      Votes
	Features   params.Vector
	Violations params.Violations
}

// Valid reports whether the request passed validation.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// #endregion result

// #region observer

// Outcome classifies an Infer call for observers.
type Outcome string

const (
	OutcomeVerdict  Outcome = "verdict"
	OutcomeRejected Outcome = "rejected"
	OutcomeShape    Outcome = "shape_error"
	OutcomeError    Outcome = "inference_error"
)

// Observer receives per-request telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveInference(outcome Outcome, elapsed time.Duration)
	ObserveVotes(votes Votes, meta Label)
}

type nopObserver struct{}

func (nopObserver) ObserveInference(Outcome, time.Duration) {}
func (nopObserver) ObserveVotes(Votes, Label)               {}

// #endregion observer
