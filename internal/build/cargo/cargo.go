// Package cargo builds and runs fuzz targets with cargo.
package cargo

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/toolchain"
	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/pkg/log"
	"code-intelligence.com/cargo-fuzz/util/envutil"
	"code-intelligence.com/cargo-fuzz/util/executil"
)

// Mode selects the cargo subcommand used to build fuzz targets
type Mode string

const (
	ModeBuild Mode = "build"
	ModeCheck Mode = "check"
)

type BuilderOptions struct {
	// FuzzDir is the directory of the fuzz project, which contains its
	// Cargo.toml
	FuzzDir   string
	Toolchain *toolchain.Toolchain
	Runner    executil.Runner
	// Environ is the environment cargo and the fuzz targets inherit
	Environ []string
	// Cargo is the cargo executable, "cargo" if empty
	Cargo string
}

type Builder struct {
	*BuilderOptions
}

func NewBuilder(opts *BuilderOptions) *Builder {
	if opts.Cargo == "" {
		opts.Cargo = "cargo"
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ()
	}
	return &Builder{BuilderOptions: opts}
}

// ManifestPath returns the path of the fuzz project's Cargo.toml
func (b *Builder) ManifestPath() string {
	return filepath.Join(b.FuzzDir, "Cargo.toml")
}

// Invocation returns the invocation of the cargo subcommand with the
// build options translated into arguments and environment variables.
func (b *Builder) Invocation(subcommand string, opts *options.BuildOptions) (*executil.Invocation, error) {
	translation := Translate(opts, b.Toolchain, b.FuzzDir, b.Environ)

	env, err := b.environment(translation)
	if err != nil {
		return nil, err
	}

	args := append([]string{subcommand, "--manifest-path", b.ManifestPath()}, translation.Args...)
	return &executil.Invocation{
		Path: b.Cargo,
		Args: args,
		Env:  env,
	}, nil
}

// Environment returns the environment with the variables of the
// translated build options set. Fuzz targets which are executed
// directly instead of via `cargo run` need it for the sanitizer
// options.
func (b *Builder) Environment(opts *options.BuildOptions) ([]string, error) {
	return b.environment(Translate(opts, b.Toolchain, b.FuzzDir, b.Environ))
}

func (b *Builder) environment(translation *Translation) ([]string, error) {
	env := append([]string{}, b.Environ...)
	return envutil.SetenvMap(env, translation.Env)
}

// Build builds the given fuzz target, or all fuzz targets if target is
// empty.
func (b *Builder) Build(ctx context.Context, mode Mode, opts *options.BuildOptions, target string) error {
	inv, err := b.Invocation(string(mode), opts)
	if err != nil {
		return err
	}
	if target != "" {
		inv.Args = append(inv.Args, "--bin", target)
	} else {
		inv.Args = append(inv.Args, "--bins")
	}

	outcome, err := b.Runner.Run(ctx, inv)
	if err != nil {
		return errors.WithMessagef(err, "failed to execute %s", inv.String())
	}
	if outcome.Interrupted {
		return cmdutils.ErrInterrupted
	}
	if !outcome.Success() {
		// It's expected that the build might fail, so we print the
		// error without the stack trace
		err = cmdutils.NewExecError(inv, outcome)
		log.Errorf(err, "Failed to build fuzz target: %s", err.Error())
		return cmdutils.WrapSilentError(err)
	}
	return nil
}

// RunInvocation returns the invocation which runs the fuzz target via
// `cargo run`. Arguments for the fuzz engine can be appended to its
// arguments, they are separated from cargo's arguments by "--".
func (b *Builder) RunInvocation(opts *options.BuildOptions, target string) (*executil.Invocation, error) {
	inv, err := b.Invocation("run", opts)
	if err != nil {
		return nil, err
	}
	inv.Args = append(inv.Args, "--bin", target, "--")
	return inv, nil
}

// BinaryPath returns the path of the fuzz target executable built by
// Build with the same options.
func (b *Builder) BinaryPath(opts *options.BuildOptions, target string) string {
	targetDir := TargetDir(opts, b.Toolchain, b.FuzzDir)
	if targetDir == "" {
		// The fuzz project is its own workspace, so cargo's default
		// target dir is located in the fuzz dir
		targetDir = filepath.Join(b.FuzzDir, "target")
	}
	profile := "release"
	if opts.Dev {
		profile = "debug"
	}
	name := target
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(targetDir, b.Toolchain.TripleOrHost(opts.Triple), profile, name)
}
