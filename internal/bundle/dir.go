package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name inside a bundle directory.
const ManifestFile = "manifest.yaml"

// #region read-dir

// ReadDir loads a bundle directory. Without a manifest.yaml, every name in
// defaults is read from "<name>.json".
func ReadDir(dir string, defaults []string) (Bundle, error) {
	m, err := ReadManifest(dir, defaults)
	if err != nil {
		return Bundle{}, err
	}

	b := Bundle{
		Source:    dir,
		Manifest:  m,
		Artifacts: make(map[string][]byte, len(m.Artifacts)),
	}
	for name, ref := range m.Artifacts {
		if ref.File == "" {
			return Bundle{}, fmt.Errorf("%w: %s has no file", ErrMissingArtifact, name)
		}
		path := ref.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return Bundle{}, fmt.Errorf("%w: %s (%s)", ErrMissingArtifact, name, path)
		}
		if err != nil {
			return Bundle{}, fmt.Errorf("read %s: %w", path, err)
		}
		b.Artifacts[name] = data
	}
	return b, nil
}

// ReadManifest reads only dir/manifest.yaml; artifact files are not opened.
// A directory without a manifest yields DefaultManifest(defaults).
func ReadManifest(dir string, defaults []string) (Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultManifest(defaults), nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if len(m.Artifacts) == 0 {
		m.Artifacts = DefaultManifest(defaults).Artifacts
	}
	return m, nil
}

// #endregion read-dir
