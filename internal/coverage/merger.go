// Package coverage generates source-based coverage data for the corpus
// of a fuzz target.
package coverage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"code-intelligence.com/cargo-fuzz/internal/build/cargo"
	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/project"
	"code-intelligence.com/cargo-fuzz/pkg/artifact"
	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/pkg/log"
	"code-intelligence.com/cargo-fuzz/util/envutil"
	"code-intelligence.com/cargo-fuzz/util/executil"
	"code-intelligence.com/cargo-fuzz/util/fileutil"
)

var ErrEmptyCorpus = errors.New("The corpus does not contain program-input files. " +
	"Coverage information requires existing input files. " +
	"Try running the fuzzer first (`cargo fuzz run ...`) to generate a corpus, " +
	"or provide a nonempty corpus directory.")

const installHint = "Do you have LLVM coverage tools installed?\n" +
	"Install them with `rustup component add llvm-tools-preview`, see\n" +
	"https://doc.rust-lang.org/rustc/instrument-coverage.html#installing-llvm-coverage-tools"

type Options struct {
	Target string
	Build  *options.BuildOptions
	// Corpora are the corpus directories to collect coverage for, the
	// default corpus of the target is used if empty
	Corpora []string
	// Args are passed to the fuzz target as is
	Args []string
}

type Merger struct {
	project *project.Project
	builder *cargo.Builder
	store   *artifact.Store
	runner  executil.Runner
}

func NewMerger(p *project.Project, builder *cargo.Builder, store *artifact.Store) *Merger {
	return &Merger{
		project: p,
		builder: builder,
		store:   store,
		runner:  builder.Runner,
	}
}

// Merge builds the fuzz target with coverage instrumentation, runs it
// on every input of the corpora and merges the raw profiles into a
// single indexed profile, whose path is returned.
func (m *Merger) Merge(ctx context.Context, opts *Options) (string, error) {
	build := *opts.Build
	build.Coverage = true
	err := build.Validate()
	if err != nil {
		return "", cmdutils.WrapIncorrectUsageError(err)
	}

	err = m.builder.Build(ctx, cargo.ModeBuild, &build, opts.Target)
	if err != nil {
		return "", err
	}

	corpora := opts.Corpora
	if len(corpora) == 0 {
		corpus, err := m.store.Dir(m.project.CorpusFor(opts.Target))
		if err != nil {
			return "", err
		}
		corpora = []string{corpus}
	}
	hasInputs, err := m.store.ContainsRegularFiles(corpora...)
	if err != nil {
		return "", err
	}
	if !hasInputs {
		return "", errors.WithStack(ErrEmptyCorpus)
	}

	rawDir, profdata := m.project.CoverageFor(opts.Target)
	_, err = m.store.Dir(rawDir)
	if err != nil {
		return "", err
	}
	err = removeRawProfiles(rawDir)
	if err != nil {
		return "", err
	}

	env, err := m.builder.Environment(&build)
	if err != nil {
		return "", err
	}
	executable := m.builder.BinaryPath(&build, opts.Target)
	log.Debugf("Executable: %s", executable)
	for i, corpus := range corpora {
		log.Infof("Generating coverage data for corpus %s", pterm.Style{pterm.Reset, pterm.FgLightBlue}.Sprint(fileutil.PrettifyPath(corpus)))
		err = m.runCorpus(ctx, executable, env, RawProfilePath(rawDir, i, corpus), corpus, opts.Args)
		if err != nil {
			return "", err
		}
	}

	err = m.mergeRawProfiles(ctx, rawDir, profdata)
	if err != nil {
		return "", err
	}
	return profdata, nil
}

// RawProfilePath returns the path of the raw profile written for the
// i-th corpus
func RawProfilePath(rawDir string, i int, corpus string) string {
	return filepath.Join(rawDir, fmt.Sprintf("default-%d-%s.profraw", i, filepath.Base(corpus)))
}

// removeRawProfiles removes the raw profiles of previous runs, which
// would otherwise be merged into the new profile
func removeRawProfiles(rawDir string) error {
	matches, err := zglob.Glob(filepath.Join(rawDir, "*.profraw"))
	if err != nil {
		return errors.WithStack(err)
	}
	for _, path := range matches {
		log.Debugf("Removing stale raw profile %s", path)
		err = os.Remove(path)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (m *Merger) runCorpus(ctx context.Context, executable string, env []string, rawProfile string, corpus string, args []string) error {
	// libFuzzer emits crashing inputs in merge mode, but these aren't
	// useful as we only run on already known inputs, so the artifacts
	// are written to a directory which is thrown away afterwards.
	tmpDir, err := os.MkdirTemp("", "cargo-fuzz-coverage-")
	if err != nil {
		return errors.WithStack(err)
	}
	defer fileutil.Cleanup(tmpDir)
	artifactsDir := filepath.Join(tmpDir, "artifacts")
	mergeDir := filepath.Join(tmpDir, "merge-target")
	for _, dir := range []string{artifactsDir, mergeDir} {
		err = os.Mkdir(dir, 0755)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	env, err = envutil.Setenv(env, "LLVM_PROFILE_FILE", rawProfile)
	if err != nil {
		return err
	}

	inv := &executil.Invocation{
		Path: executable,
		Args: append([]string{
			"-artifact_prefix=" + artifactsDir + string(filepath.Separator),
			"-merge=1",
			mergeDir,
			corpus,
		}, args...),
		Env: env,
	}
	outcome, err := m.runner.Run(ctx, inv)
	if err != nil {
		return errors.WithMessagef(err, "failed to execute %s", inv.String())
	}
	if outcome.Interrupted {
		return cmdutils.ErrInterrupted
	}
	if !outcome.Success() {
		return errors.WithMessage(cmdutils.NewExecError(inv, outcome), "Failed to generate coverage data")
	}
	return nil
}

func (m *Merger) mergeRawProfiles(ctx context.Context, rawDir string, profdata string) error {
	llvmProfData, err := m.builder.Toolchain.LLVMProfDataPath(ctx, m.runner, m.builder.Environ)
	if err != nil {
		return errors.WithMessage(err, "Merging raw coverage files failed.\n\n"+installHint)
	}

	inv := &executil.Invocation{
		Path: llvmProfData,
		Args: []string{"merge", "-sparse", rawDir, "-o", profdata},
		Env:  m.builder.Environ,
	}
	log.Info("Merging raw coverage data...")
	outcome, err := m.runner.Run(ctx, inv)
	if err != nil {
		return errors.WithMessage(err, "Merging raw coverage files failed.\n\n"+installHint)
	}
	if outcome.Interrupted {
		return cmdutils.ErrInterrupted
	}
	if !outcome.Success() {
		return errors.WithMessage(cmdutils.NewExecError(inv, outcome), "Merging raw coverage files failed")
	}

	exists, err := fileutil.Exists(profdata)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New("Coverage data could not be merged.")
	}
	log.Successf("Coverage data merged and saved in %s.", fileutil.PrettifyPath(profdata))
	return nil
}
