// Package project locates fuzz projects and knows their directory
// layout.
package project

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/pkg/log"
	"code-intelligence.com/cargo-fuzz/util/fileutil"
)

const (
	DefaultFuzzDir = "fuzz"
	FuzzTargetsDir = "fuzz_targets"
	// The directory fuzz targets were stored in by older versions
	FuzzTargetsDirOld = "fuzzers"
)

var (
	//go:embed Cargo.toml.tmpl
	cargoTomlTemplate string
	//go:embed bin.toml.tmpl
	binTomlTemplate string
	//go:embed gitignore.tmpl
	gitignoreTemplate string
	//go:embed target.rs.tmpl
	targetTemplate string
)

// Project is a fuzz project, which lives in a directory (by default
// "fuzz") of the cargo package being fuzzed.
type Project struct {
	// ProjectDir is the directory of the package being fuzzed
	ProjectDir string
	// FuzzDir is the directory of the fuzz project
	FuzzDir string
	Targets []string
}

// New locates the package containing the working directory and the
// fuzz project in it. If fuzzDir is empty, the default fuzz directory
// is used.
func New(fuzzDir string) (*Project, error) {
	p, err := newInitialProject(fuzzDir)
	if err != nil {
		return nil, err
	}

	manifest, err := ParseManifest(p.ManifestPath())
	if errors.Is(err, os.ErrNotExist) {
		err = fmt.Errorf("no fuzz project found in %s\nUse 'cargo fuzz init' to set one up. %w", p.FuzzDir, os.ErrNotExist)
		return nil, errors.WithStack(err)
	}
	if err != nil {
		return nil, err
	}
	if !manifest.IsFuzzManifest() {
		return nil, errors.Errorf("manifest `%s` does not look like a cargo-fuzz manifest. "+
			"Add following lines to override:\n[package.metadata]\ncargo-fuzz = true", p.ManifestPath())
	}
	p.Targets = manifest.Targets()
	return p, nil
}

func newInitialProject(fuzzDir string) (*Project, error) {
	projectDir, err := FindPackage()
	if err != nil {
		return nil, err
	}
	if fuzzDir == "" {
		fuzzDir = filepath.Join(projectDir, DefaultFuzzDir)
	}
	fuzzDir, err = filepath.Abs(fuzzDir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Project{ProjectDir: projectDir, FuzzDir: fuzzDir}, nil
}

// FindPackage returns the directory of the first cargo package which
// is not a fuzz project, starting at the working directory and walking
// up the filesystem.
func FindPackage() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.WithStack(err)
	}
	for {
		manifestPath := filepath.Join(dir, "Cargo.toml")
		exists, err := fileutil.Exists(manifestPath)
		if err != nil {
			return "", err
		}
		if exists {
			manifest, err := ParseManifest(manifestPath)
			if err != nil {
				return "", err
			}
			if !manifest.IsFuzzManifest() {
				return dir, nil
			}
		}
		if dir == filepath.Dir(dir) {
			err := fmt.Errorf("could not find a cargo project: %w", os.ErrNotExist)
			return "", errors.WithStack(err)
		}
		dir = filepath.Dir(dir)
	}
}

// Init creates a fuzz project with a first fuzz target.
func Init(fuzzDir string, target string) (*Project, error) {
	p, err := newInitialProject(fuzzDir)
	if err != nil {
		return nil, err
	}
	manifest, err := ParseManifest(filepath.Join(p.ProjectDir, "Cargo.toml"))
	if err != nil {
		return nil, err
	}

	exists, err := fileutil.Exists(p.ManifestPath())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Errorf("fuzz project already initialized in %s", p.FuzzDir)
	}

	err = os.MkdirAll(p.FuzzDir, 0755)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	data := struct {
		CrateName string
		Edition   string
	}{manifest.CrateName(), manifest.Edition()}
	err = writeTemplate(p.ManifestPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, cargoTomlTemplate, data)
	if err != nil {
		return nil, err
	}
	err = writeTemplate(filepath.Join(p.FuzzDir, ".gitignore"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, gitignoreTemplate, nil)
	if err != nil {
		return nil, err
	}

	err = p.AddTarget(target)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AddTarget creates a new fuzz target script and adds it to the
// manifest.
func (p *Project) AddTarget(target string) error {
	if slices.Contains(p.Targets, target) {
		return cmdutils.WrapIncorrectUsageError(errors.Errorf("fuzz target %q already exists", target))
	}

	targetsDir := p.FuzzTargetsDir()
	err := os.MkdirAll(targetsDir, 0755)
	if err != nil {
		return errors.WithStack(err)
	}

	data := struct{ Target string }{target}
	err = writeTemplate(p.TargetPath(target), os.O_CREATE|os.O_EXCL|os.O_WRONLY, targetTemplate, data)
	if err != nil {
		return errors.WithMessagef(err, "could not add target %q", target)
	}
	err = writeTemplate(p.ManifestPath(), os.O_APPEND|os.O_WRONLY, binTomlTemplate, data)
	if err != nil {
		return err
	}

	p.Targets = append(p.Targets, target)
	slices.Sort(p.Targets)
	return nil
}

// ValidateTarget returns an error if the project has no fuzz target
// with the given name.
func (p *Project) ValidateTarget(target string) error {
	if slices.Contains(p.Targets, target) {
		return nil
	}
	msg := fmt.Sprintf("no fuzz target %q in %s", target, p.ManifestPath())
	if len(p.Targets) > 0 {
		msg += "\nAvailable fuzz targets: " + strings.Join(p.Targets, ", ")
	}
	return cmdutils.WrapIncorrectUsageError(errors.New(msg))
}

func (p *Project) ManifestPath() string {
	return filepath.Join(p.FuzzDir, "Cargo.toml")
}

func (p *Project) FuzzTargetsDir() string {
	oldDir := filepath.Join(p.FuzzDir, FuzzTargetsDirOld)
	if fileutil.IsDir(oldDir) {
		log.Warnf("The `%s/%s/` directory has been renamed to `%s/%s/`. Please rename the directory as such.",
			DefaultFuzzDir, FuzzTargetsDirOld, DefaultFuzzDir, FuzzTargetsDir)
		return oldDir
	}
	return filepath.Join(p.FuzzDir, FuzzTargetsDir)
}

func (p *Project) TargetPath(target string) string {
	return filepath.Join(p.FuzzTargetsDir(), target+".rs")
}

// CorpusFor returns the default corpus directory of the target
func (p *Project) CorpusFor(target string) string {
	return filepath.Join(p.FuzzDir, "corpus", target)
}

// ArtifactsFor returns the artifacts directory of the target with a
// trailing separator, because libFuzzer concatenates the artifact
// prefix and the file name.
func (p *Project) ArtifactsFor(target string) string {
	return filepath.Join(p.FuzzDir, "artifacts", target) + string(filepath.Separator)
}

// CoverageFor returns the directory for raw coverage profiles of the
// target and the path of the merged profile.
func (p *Project) CoverageFor(target string) (rawDir string, profdata string) {
	dir := filepath.Join(p.FuzzDir, "coverage", target)
	return filepath.Join(dir, "raw"), filepath.Join(dir, "coverage.profdata")
}

// IsDefaultFuzzDir returns whether the fuzz project is located in the
// default fuzz directory.
func (p *Project) IsDefaultFuzzDir() bool {
	return p.FuzzDir == filepath.Join(p.ProjectDir, DefaultFuzzDir)
}

// FuzzDirArg returns the --fuzz-dir argument, preceded by a space,
// which is needed to reproduce a command line for this project. It's
// empty for the default fuzz directory.
func (p *Project) FuzzDirArg() string {
	if p.IsDefaultFuzzDir() {
		return ""
	}
	return " --fuzz-dir " + fileutil.PrettifyPath(p.FuzzDir)
}

func writeTemplate(path string, flag int, text string, data interface{}) error {
	t, err := template.New(filepath.Base(path)).Parse(text)
	if err != nil {
		return errors.WithStack(err)
	}

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	err = t.Execute(f, data)
	if err != nil {
		_ = f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}
