// Package orchestrator runs fuzz targets and reports their findings.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/pkg/errors"

	"code-intelligence.com/cargo-fuzz/internal/build/cargo"
	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/project"
	"code-intelligence.com/cargo-fuzz/pkg/artifact"
	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/pkg/desktop"
	"code-intelligence.com/cargo-fuzz/pkg/log"
	"code-intelligence.com/cargo-fuzz/util/envutil"
	"code-intelligence.com/cargo-fuzz/util/executil"
	"code-intelligence.com/cargo-fuzz/util/fileutil"
	"code-intelligence.com/cargo-fuzz/util/stringutil"
)

// DebugPathEnvVar makes fuzz targets write the `std::fmt::Debug`
// representation of their input to the given file.
const DebugPathEnvVar = "RUST_LIBFUZZER_DEBUG_PATH"

type State int

const (
	StateIdle State = iota
	StateBuilding
	StateRunning
	StateSuccess
	StateTriaging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateRunning:
		return "running"
	case StateSuccess:
		return "success"
	case StateTriaging:
		return "triaging"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type RunOptions struct {
	Target string
	Build  *options.BuildOptions
	// Corpus directories, the default corpus of the target is used if
	// empty. New inputs are written to the first one.
	Corpus []string
	// Jobs is the number of fuzzing processes, libFuzzer's fork mode
	// is used if it's greater than one
	Jobs uint
	// Args are passed to the fuzz engine as is
	Args []string
	// If Foreground is true, the fuzz target replaces the current
	// process, so no triage is done.
	Foreground bool
}

type TminOptions struct {
	Target   string
	Build    *options.BuildOptions
	TestCase string
	Runs     uint
	Args     []string
}

type CminOptions struct {
	Target string
	Build  *options.BuildOptions
	// Corpus is the directory to minimize, the default corpus of the
	// target is used if empty
	Corpus string
	Args   []string
}

type FmtOptions struct {
	Target string
	Build  *options.BuildOptions
	Input  string
}

type Orchestrator struct {
	project *project.Project
	builder *cargo.Builder
	store   *artifact.Store
	runner  executil.Runner

	state State
}

func New(p *project.Project, builder *cargo.Builder, store *artifact.Store) *Orchestrator {
	return &Orchestrator{
		project: p,
		builder: builder,
		store:   store,
		runner:  builder.Runner,
	}
}

// State returns the state the last pipeline ended in
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) setState(s State) {
	log.Debugf("State: %s -> %s", o.state, s)
	o.state = s
}

// Build builds the given fuzz target, or all fuzz targets if target is
// empty.
func (o *Orchestrator) Build(ctx context.Context, mode cargo.Mode, build *options.BuildOptions, target string) error {
	o.state = StateIdle
	o.setState(StateBuilding)
	err := o.builder.Build(ctx, mode, build, target)
	if err != nil {
		return err
	}
	o.setState(StateSuccess)
	return nil
}

// Fuzz builds and runs the fuzz target. If the fuzz target fails, the
// artifacts it created are reported and an error is returned.
func (o *Orchestrator) Fuzz(ctx context.Context, opts *RunOptions) error {
	o.state = StateIdle
	o.setState(StateBuilding)
	err := o.builder.Build(ctx, cargo.ModeBuild, opts.Build, opts.Target)
	if err != nil {
		return err
	}

	inv, artifactsDir, err := o.engineInvocation(opts.Build, opts.Target)
	if err != nil {
		return err
	}
	if opts.Jobs > 1 {
		inv.Args = append(inv.Args, fmt.Sprintf("-fork=%d", opts.Jobs))
	}
	inv.Args = append(inv.Args, opts.Args...)

	corpora := opts.Corpus
	if len(corpora) == 0 {
		corpus, err := o.store.Dir(o.project.CorpusFor(opts.Target))
		if err != nil {
			return err
		}
		corpora = []string{corpus}
	}
	inv.Args = append(inv.Args, corpora...)

	if opts.Foreground {
		inv.Style = executil.Foreground
	}

	// New artifacts are identified by their modification time, so we
	// take the snapshot right before the fuzz target is started
	snapshot := o.store.Snapshot()
	o.setState(StateRunning)
	outcome, err := o.runner.Run(ctx, inv)
	if err != nil {
		return errors.WithMessagef(err, "failed to execute %s", inv.String())
	}
	if outcome.Success() {
		o.setState(StateSuccess)
		return nil
	}
	if outcome.Interrupted {
		return interrupted("Fuzzing")
	}

	o.setState(StateTriaging)
	artifacts, err := o.store.NewFilesSince(artifactsDir, snapshot)
	if err != nil {
		return err
	}
	for _, path := range artifacts {
		o.printArtifact(ctx, opts.Build, opts.Target, path)
	}
	if len(artifacts) > 0 {
		desktop.Notify("cargo fuzz", fmt.Sprintf("Fuzz target %s found %d failing input(s)", opts.Target, len(artifacts)))
	}
	log.Separator()
	log.Print()
	err = errors.Errorf("Fuzz target exited with %s", outcome)
	if outcome.Signal != 0 {
		return cmdutils.WrapSignalError(err, outcome.Signal)
	}
	return err
}

func (o *Orchestrator) printArtifact(ctx context.Context, build *options.BuildOptions, target string, path string) {
	prettyPath := fileutil.PrettifyPath(path)

	log.Print()
	log.Separator()
	log.Printf("\n%s\n\n\t%s\n\n", heading("Failing input:"), prettyPath)

	// Fuzz targets which use an older version of libfuzzer-sys don't
	// support RUST_LIBFUZZER_DEBUG_PATH, so errors are not reported
	debug, err := o.debugFormat(ctx, build, target, path)
	if err != nil {
		log.Debugf("%+v", err)
	} else {
		log.Printf("%s\n\n", heading("Output of `std::fmt::Debug`:"))
		printDebugOutput(debug, "\t")
		log.Print()
	}

	log.Printf("%s\n\n\t%s\n\n", heading("Reproduce with:"), o.commandLine("run", build, target, prettyPath))
	log.Printf("%s\n\n\t%s\n\n", heading("Minimize test case with:"), o.commandLine("tmin", build, target, prettyPath))
}

// MinimizeTestCase minimizes a crashing input and returns the path of
// the minimized artifact. The path is empty if the fuzz target didn't
// create a new artifact.
func (o *Orchestrator) MinimizeTestCase(ctx context.Context, opts *TminOptions) (string, error) {
	o.state = StateIdle
	o.setState(StateBuilding)
	err := o.builder.Build(ctx, cargo.ModeBuild, opts.Build, opts.Target)
	if err != nil {
		return "", err
	}

	inv, artifactsDir, err := o.engineInvocation(opts.Build, opts.Target)
	if err != nil {
		return "", err
	}
	inv.Args = append(inv.Args, "-minimize_crash=1", fmt.Sprintf("-runs=%d", opts.Runs), opts.TestCase)
	inv.Args = append(inv.Args, opts.Args...)

	snapshot := o.store.Snapshot()
	o.setState(StateRunning)
	outcome, err := o.runner.Run(ctx, inv)
	if err != nil {
		return "", errors.WithMessagef(err, "failed to execute %s", inv.String())
	}
	if outcome.Interrupted {
		return "", interrupted("Test case minimization")
	}
	if !outcome.Success() {
		o.setState(StateTriaging)
		log.Print()
		log.Separator()
		log.Print()
		err = cmdutils.NewExecError(inv, outcome)
		return "", errors.WithMessage(err, "Test case minimization failed.\n\n"+
			"Usually this isn't a hard error, and just means that libfuzzer\n"+
			"doesn't know how to minimize the test case any further while\n"+
			"still reproducing the original crash.\n\n"+
			"See the logs above for details.\n")
	}
	o.setState(StateSuccess)

	// The most recent artifact is the smallest input which still
	// reproduces the crash. libFuzzer doesn't report its path in a way
	// which is worth parsing.
	minimized, err := o.store.MostRecentSince(artifactsDir, snapshot)
	if err != nil {
		return "", err
	}
	if minimized == "" {
		log.Debugf("No new artifact in %s", artifactsDir)
		return "", nil
	}

	prettyPath := fileutil.PrettifyPath(minimized)
	log.Print()
	log.Separator()
	log.Printf("\n%s\n\n\t%s\n\n", heading("Minimized artifact:"), prettyPath)

	debug, err := o.debugFormat(ctx, opts.Build, opts.Target, minimized)
	if err != nil {
		log.Debugf("%+v", err)
	} else {
		log.Printf("%s\n\n", heading("Output of `std::fmt::Debug`:"))
		printDebugOutput(debug, "\t")
		log.Print()
	}

	log.Printf("%s\n\n\t%s\n\n", heading("Reproduce with:"), o.commandLine("run", opts.Build, opts.Target, prettyPath))
	return minimized, nil
}

// MinimizeCorpus minimizes the corpus with libFuzzer's merge mode. The
// minimized corpus replaces the original one only if the fuzz target
// succeeded. A failing fuzz target is reported, but not treated as an
// error.
func (o *Orchestrator) MinimizeCorpus(ctx context.Context, opts *CminOptions) error {
	o.state = StateIdle
	o.setState(StateBuilding)
	err := o.builder.Build(ctx, cargo.ModeBuild, opts.Build, opts.Target)
	if err != nil {
		return err
	}

	corpus := opts.Corpus
	if corpus == "" {
		corpus, err = o.store.Dir(o.project.CorpusFor(opts.Target))
		if err != nil {
			return err
		}
	}
	before, err := o.store.CountFiles(corpus)
	if err != nil {
		return err
	}

	inv, _, err := o.engineInvocation(opts.Build, opts.Target)
	if err != nil {
		return err
	}

	stage, err := o.store.StageCorpus(o.project.FuzzDir)
	if err != nil {
		return err
	}
	inv.Args = append(inv.Args, opts.Args...)
	inv.Args = append(inv.Args, "-merge=1", artifact.StagedCorpus(stage), corpus)

	o.setState(StateRunning)
	outcome, err := o.runner.Run(ctx, inv)
	if err != nil {
		o.store.RemoveStage(stage)
		return errors.WithMessagef(err, "failed to execute %s", inv.String())
	}
	if outcome.Interrupted {
		o.store.RemoveStage(stage)
		return interrupted("Corpus minimization")
	}
	if !outcome.Success() {
		o.setState(StateTriaging)
		o.store.RemoveStage(stage)
		log.Printf("Failed to minimize corpus: %s", outcome)
		return nil
	}

	err = o.store.SwapCorpus(stage, corpus)
	if err != nil {
		return err
	}
	o.setState(StateSuccess)

	after, err := o.store.CountFiles(corpus)
	if err != nil {
		return err
	}
	log.Successf("Minimized corpus %s from %d to %d inputs", fileutil.PrettifyPath(corpus), before, after)
	return nil
}

// DebugFormat prints the `std::fmt::Debug` representation of an input
// of the fuzz target.
func (o *Orchestrator) DebugFormat(ctx context.Context, opts *FmtOptions) error {
	exists, err := fileutil.Exists(opts.Input)
	if err != nil {
		return err
	}
	if !exists {
		return cmdutils.WrapIncorrectUsageError(errors.Errorf("Input test case does not exist: %s", opts.Input))
	}

	o.state = StateIdle
	o.setState(StateBuilding)
	err = o.builder.Build(ctx, cargo.ModeBuild, opts.Build, opts.Target)
	if err != nil {
		return err
	}

	o.setState(StateRunning)
	debug, err := o.debugFormat(ctx, opts.Build, opts.Target, opts.Input)
	if err != nil {
		return errors.WithMessagef(err, "failed to run `cargo fuzz fmt` on input: %s", opts.Input)
	}
	o.setState(StateSuccess)

	log.Printf("\n%s\n\n", heading("Output of `std::fmt::Debug`:"))
	printDebugOutput(debug, "")
	return nil
}

// debugFormat runs the fuzz target on the input with the debug path
// set and returns the content the fuzz target wrote to it.
func (o *Orchestrator) debugFormat(ctx context.Context, build *options.BuildOptions, target string, input string) (string, error) {
	f, err := os.CreateTemp("", "cargo-fuzz-debug-")
	if err != nil {
		return "", errors.WithStack(err)
	}
	debugPath := f.Name()
	defer fileutil.Cleanup(debugPath)
	err = f.Close()
	if err != nil {
		return "", errors.WithStack(err)
	}

	inv, _, err := o.engineInvocation(build, target)
	if err != nil {
		return "", err
	}
	inv.Args = append(inv.Args, input)
	inv.Env, err = envutil.Setenv(inv.Env, DebugPathEnvVar, debugPath)
	if err != nil {
		return "", err
	}
	inv.NullStdin = true
	inv.Capture = true

	outcome, err := o.runner.Run(ctx, inv)
	if err != nil {
		return "", errors.WithMessagef(err, "failed to execute %s", inv.String())
	}
	if outcome.Interrupted {
		return "", interrupted("Debug formatting")
	}
	if !outcome.Success() {
		return "", errors.Errorf("Fuzz target '%s' exited with failure when attempting to "+
			"debug format an interesting input that we discovered!\n\n"+
			"Artifact: %s\n\n"+
			"Command: %s\n\n"+
			"Status: %s\n\n"+
			"=== stdout ===\n%s\n\n"+
			"=== stderr ===\n%s",
			target, input, inv.String(), outcome, outcome.Stdout, outcome.Stderr)
	}

	debug, err := os.ReadFile(debugPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to read temp file")
	}
	return string(debug), nil
}

// engineInvocation returns the `cargo run` invocation of the fuzz
// target with the artifact prefix set, and the artifacts directory.
func (o *Orchestrator) engineInvocation(build *options.BuildOptions, target string) (*executil.Invocation, string, error) {
	artifactsDir, err := o.store.Dir(o.project.ArtifactsFor(target))
	if err != nil {
		return nil, "", err
	}
	inv, err := o.builder.RunInvocation(build, target)
	if err != nil {
		return nil, "", err
	}
	// The artifacts dir has a trailing separator, libFuzzer prepends
	// the prefix to the file name as is
	inv.Args = append(inv.Args, "-artifact_prefix="+o.project.ArtifactsFor(target))
	return inv, artifactsDir, nil
}

func (o *Orchestrator) commandLine(subcommand string, build *options.BuildOptions, target string, input string) string {
	args := []string{"cargo", "fuzz", subcommand}
	if !o.project.IsDefaultFuzzDir() {
		args = append(args, "--fuzz-dir", fileutil.PrettifyPath(o.project.FuzzDir))
	}
	args = append(args, build.Args()...)
	args = append(args, target, input)
	return stringutil.ShellCommandLine(args...)
}

func printDebugOutput(debug string, indent string) {
	for _, line := range strings.Split(strings.TrimRight(debug, "\n"), "\n") {
		log.Print(indent + line)
	}
}

func interrupted(what string) error {
	log.Print()
	log.Infof("%s was interrupted", what)
	return cmdutils.ErrInterrupted
}

func heading(s string) string {
	return color.Bold.Sprint(s)
}
