package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/util/testutil"
)

func chdirToTestProject(t *testing.T) string {
	dir := testutil.CopyTestdata(t, filepath.Join("testdata", "project"))
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	return dir
}

func TestNew(t *testing.T) {
	dir := chdirToTestProject(t)

	p, err := New("")
	require.NoError(t, err)
	assert.Equal(t, dir, p.ProjectDir)
	assert.Equal(t, filepath.Join(dir, "fuzz"), p.FuzzDir)
	assert.Equal(t, []string{"parse_bytes", "parse_len"}, p.Targets)
	assert.True(t, p.IsDefaultFuzzDir())
	assert.Empty(t, p.FuzzDirArg())
}

func TestNew_FromFuzzDir(t *testing.T) {
	dir := chdirToTestProject(t)
	// The fuzz project itself is skipped when looking for the package
	require.NoError(t, os.Chdir(filepath.Join(dir, "fuzz", "fuzz_targets")))

	p, err := New("")
	require.NoError(t, err)
	assert.Equal(t, dir, p.ProjectDir)
}

func TestNew_NotInitialized(t *testing.T) {
	dir := chdirToTestProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "fuzz")))

	_, err := New("")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNew_NotAFuzzManifest(t *testing.T) {
	dir := chdirToTestProject(t)
	err := os.WriteFile(filepath.Join(dir, "fuzz", "Cargo.toml"), []byte("[package]\nname = \"x\"\n"), 0644)
	require.NoError(t, err)

	_, err = New("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cargo-fuzz = true")
}

func TestInitAndAdd(t *testing.T) {
	dir := chdirToTestProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "fuzz")))

	p, err := Init("", "first")
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, p.Targets)
	assert.FileExists(t, filepath.Join(dir, "fuzz", ".gitignore"))
	assert.FileExists(t, filepath.Join(dir, "fuzz", "fuzz_targets", "first.rs"))

	manifest, err := ParseManifest(p.ManifestPath())
	require.NoError(t, err)
	assert.True(t, manifest.IsFuzzManifest())
	assert.Equal(t, "parser-fuzz", manifest.CrateName())
	assert.Equal(t, "2018", manifest.Edition())

	err = p.AddTarget("second")
	require.NoError(t, err)

	// Adding an existing target fails
	err = p.AddTarget("second")
	var usageErr *cmdutils.IncorrectUsageError
	require.ErrorAs(t, err, &usageErr)

	// The targets are read back from the manifest
	p, err = New("")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, p.Targets)

	// Initializing twice fails
	_, err = Init("", "third")
	require.Error(t, err)
}

func TestValidateTarget(t *testing.T) {
	p := &Project{Targets: []string{"a", "b"}}
	require.NoError(t, p.ValidateTarget("a"))

	err := p.ValidateTarget("c")
	var usageErr *cmdutils.IncorrectUsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Contains(t, err.Error(), "a, b")
}

func TestDirectoryLayout(t *testing.T) {
	p := &Project{ProjectDir: "/pkg", FuzzDir: filepath.Join("/pkg", "fuzz")}
	assert.Equal(t, filepath.Join("/pkg", "fuzz", "corpus", "t"), p.CorpusFor("t"))
	assert.Equal(t, filepath.Join("/pkg", "fuzz", "artifacts", "t")+string(filepath.Separator), p.ArtifactsFor("t"))

	raw, profdata := p.CoverageFor("t")
	assert.Equal(t, filepath.Join("/pkg", "fuzz", "coverage", "t", "raw"), raw)
	assert.Equal(t, filepath.Join("/pkg", "fuzz", "coverage", "t", "coverage.profdata"), profdata)

	p.FuzzDir = "/elsewhere"
	assert.False(t, p.IsDefaultFuzzDir())
	assert.Equal(t, " --fuzz-dir /elsewhere", p.FuzzDirArg())
}
