package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"
)

// #region errors

var (
	// ErrChecksum is returned when an artifact does not match its pinned sha256.
	ErrChecksum = errors.New("artifact checksum mismatch")
	// ErrMissingArtifact is returned when a required artifact is absent.
	ErrMissingArtifact = errors.New("missing artifact")
	// ErrNoActive is returned when the store has no active bundle yet.
	ErrNoActive = errors.New("no active bundle")
)

// #endregion errors

// #region manifest

// Manifest describes the artifacts of a bundle and the probe cases recorded
// when it was exported.
type Manifest struct {
	Description string                 `yaml:"description" json:"description,omitempty"`
	Artifacts   map[string]ArtifactRef `yaml:"artifacts" json:"artifacts"`
	Probes      []Probe                `yaml:"probes" json:"probes,omitempty"`
}

// ArtifactRef points at one artifact file. SHA256 is optional on disk and
// always filled in once the bundle is stored.
type ArtifactRef struct {
	File   string `yaml:"file" json:"file"`
	SHA256 string `yaml:"sha256,omitempty" json:"sha256,omitempty"`
}

// Probe is a known input with the outcome the exporting models produced.
type Probe struct {
	Name    string             `yaml:"name" json:"name"`
	Params  map[string]float64 `yaml:"params" json:"params"`
	Verdict string             `yaml:"verdict" json:"verdict"`
	Votes   []int              `yaml:"votes,omitempty" json:"votes,omitempty"`
}

// DefaultManifest maps each name to "<name>.json".
func DefaultManifest(names []string) Manifest {
	m := Manifest{Artifacts: make(map[string]ArtifactRef, len(names))}
	for _, n := range names {
		m.Artifacts[n] = ArtifactRef{File: n + ".json"}
	}
	return m
}

// #endregion manifest

// #region bundle

// Bundle is one complete, versioned set of model artifacts.
type Bundle struct {
	ID        string
	ParentID  string
	Source    string
	Manifest  Manifest
	Artifacts map[string][]byte
	CreatedAt time.Time
}

// Summary is a bundle row without payloads.
type Summary struct {
	ID        string
	ParentID  string
	Source    string
	Artifacts []string
	Active    bool
	CreatedAt time.Time
}

// Verify checks that every required artifact is present and matches any
// pinned checksum. All problems are reported together.
func (b *Bundle) Verify(required []string) error {
	var errs []error
	for _, name := range required {
		if _, ok := b.Artifacts[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingArtifact, name))
		}
	}
	names := make([]string, 0, len(b.Artifacts))
	for name := range b.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		want := b.Manifest.Artifacts[name].SHA256
		if want == "" {
			continue
		}
		if got := Checksum(b.Artifacts[name]); got != want {
			errs = append(errs, fmt.Errorf("%w: %s: want %s, got %s", ErrChecksum, name, want, got))
		}
	}
	return errors.Join(errs...)
}

// Checksum returns the hex sha256 of payload.
func Checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// #endregion bundle
