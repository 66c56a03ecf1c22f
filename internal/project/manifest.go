package project

import (
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Manifest contains the parts of a Cargo.toml we are interested in
type Manifest struct {
	Package struct {
		Name string `toml:"name"`
		// The edition is a table if it's inherited from the workspace
		Edition  interface{}            `toml:"edition"`
		Metadata map[string]interface{} `toml:"metadata"`
	} `toml:"package"`
	Bin []struct {
		Name string `toml:"name"`
		Path string `toml:"path"`
	} `toml:"bin"`
}

// ParseManifest parses the Cargo.toml at the given path
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read the manifest file: %s", path)
	}
	manifest := &Manifest{}
	err = toml.Unmarshal(data, manifest)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode the manifest file at %s", path)
	}
	return manifest, nil
}

// IsFuzzManifest returns whether the manifest belongs to a fuzz
// project, which is marked by `cargo-fuzz = true` in the
// [package.metadata] table.
func (m *Manifest) IsFuzzManifest() bool {
	isFuzz, ok := m.Package.Metadata["cargo-fuzz"].(bool)
	return ok && isFuzz
}

// CrateName returns the package name
func (m *Manifest) CrateName() string {
	return m.Package.Name
}

// Edition returns the edition of the package or the default edition if
// it's not set explicitly or inherited from the workspace.
func (m *Manifest) Edition() string {
	if edition, ok := m.Package.Edition.(string); ok && edition != "" {
		return edition
	}
	return "2021"
}

// Targets returns the sorted names of all binaries
func (m *Manifest) Targets() []string {
	var targets []string
	for _, bin := range m.Bin {
		if bin.Name != "" {
			targets = append(targets, bin.Name)
		}
	}
	sort.Strings(targets)
	return targets
}
