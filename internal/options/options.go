// Package options contains the build configuration of fuzz targets,
// which is shared by all commands that build a fuzz target.
package options

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// BuildOptions is the build configuration of a fuzz target. It must not
// be modified after Validate was called.
type BuildOptions struct {
	// Build in development mode, without optimizations
	Dev bool
	// Records that release mode was requested explicitly. Release mode
	// is the default unless Dev is set.
	Release         bool
	DebugAssertions bool
	// Verbose output of the builder tool
	Verbose bool

	NoDefaultFeatures bool
	AllFeatures       bool
	Features          string

	Sanitizer Sanitizer
	BuildStd  bool
	// Careful mode builds the standard library with debug assertions
	// and extra UB checks. It implies BuildStd.
	Careful bool

	// Triple is the target triple. An empty triple means the host
	// triple of the toolchain.
	Triple        string
	UnstableFlags []string
	TargetDir     string

	// Instrument with source-based code coverage. Only set by the
	// coverage command.
	Coverage bool

	NoTraceCompares      bool
	TraceDivs            bool
	TraceGeps            bool
	StripDeadCode        bool
	DisableBranchFolding bool
	NoCfgFuzzing         bool
}

// AddFlags adds the flags which configure opts to the flag set
func AddFlags(flags *pflag.FlagSet, opts *BuildOptions) {
	flags.BoolVarP(&opts.Dev, "dev", "D", false,
		"Build artifacts in development mode, without optimizations")
	flags.BoolVarP(&opts.Release, "release", "O", false,
		"Build artifacts in release mode, with optimizations")
	flags.BoolVarP(&opts.DebugAssertions, "debug-assertions", "a", false,
		"Build artifacts with debug assertions and overflow checks enabled (default if not -O)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false,
		"Build target with verbose output from `cargo build`")
	flags.BoolVar(&opts.NoDefaultFeatures, "no-default-features", false,
		"Build artifacts with default Cargo features disabled")
	flags.BoolVar(&opts.AllFeatures, "all-features", false,
		"Build artifacts with all Cargo features enabled")
	flags.StringVar(&opts.Features, "features", "",
		"Build artifacts with given Cargo `features` enabled")
	flags.VarP(&opts.Sanitizer, "sanitizer", "s",
		"Use a specific sanitizer, one of: "+strings.Join(SanitizerNames(), ", "))
	flags.Lookup("sanitizer").DefValue = SanitizerAddress.String()
	flags.BoolVar(&opts.BuildStd, "build-std", false,
		"Pass -Zbuild-std to Cargo, which will build the standard library with all the build\n"+
			"settings for the fuzz target, including debug assertions, and a sanitizer if requested.\n"+
			"This conflicts with coverage instrumentation.")
	flags.BoolVarP(&opts.Careful, "careful", "c", false,
		"Enable \"careful\" mode: build the fuzzing harness along with the standard library\n"+
			"(implies --build-std) with debug assertions and extra const UB and init checks.")
	flags.StringVar(&opts.Triple, "target", "",
		"Target `triple` of the fuzz target (default: the host triple)")
	flags.StringArrayVarP(&opts.UnstableFlags, "unstable-flag", "Z", nil,
		"Unstable (nightly-only) `flag` to Cargo. This flag can be used multiple times.")
	flags.StringVar(&opts.TargetDir, "target-dir", "",
		"Target `dir` option to pass to cargo build")
	flags.BoolVar(&opts.Coverage, "coverage", false,
		"Instrument program code with source-based code coverage information")
	_ = flags.MarkHidden("coverage")
	flags.BoolVar(&opts.StripDeadCode, "strip-dead-code", false,
		"Don't link dead code, which is linked by default to prevent errors with some optimized targets")
	flags.BoolVar(&opts.NoCfgFuzzing, "no-cfg-fuzzing", false,
		"Don't set the 'cfg(fuzzing)' compilation configuration")
	flags.BoolVar(&opts.NoTraceCompares, "no-trace-compares", false,
		"Don't build with the `sanitizer-coverage-trace-compares` LLVM argument.\n"+
			"This may improve fuzzer throughput at the cost of worse coverage accuracy.")
	flags.BoolVar(&opts.TraceDivs, "trace-divs", false,
		"Build with the `sanitizer-coverage-trace-divs` LLVM argument")
	flags.BoolVar(&opts.TraceGeps, "trace-geps", false,
		"Build with the `sanitizer-coverage-trace-geps` LLVM argument")
	flags.BoolVar(&opts.DisableBranchFolding, "disable-branch-folding", false,
		"Disable the branch folding optimization, which can hide branches from the fuzzer")
}

// ParseBuildFlags parses command-line arguments as produced by String
// into build options.
func ParseBuildFlags(args []string) (*BuildOptions, error) {
	opts := &BuildOptions{}
	flags := pflag.NewFlagSet("build options", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	AddFlags(flags, opts)
	err := flags.Parse(args)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if flags.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}
	return opts, nil
}

// EffectiveBuildStd returns whether the standard library is rebuilt,
// which is implied by the memory sanitizer and careful mode.
func (opts *BuildOptions) EffectiveBuildStd() bool {
	return opts.BuildStd || opts.Careful || opts.Sanitizer == SanitizerMemory
}

// Validate checks that the options don't contain conflicting settings.
func (opts *BuildOptions) Validate() error {
	if opts.Dev && opts.Release {
		return errors.New("--dev and --release can't be used together")
	}
	if opts.AllFeatures && opts.NoDefaultFeatures {
		return errors.New("--all-features and --no-default-features can't be used together")
	}
	if opts.AllFeatures && opts.Features != "" {
		return errors.New("--all-features and --features can't be used together")
	}
	if opts.Coverage && opts.EffectiveBuildStd() {
		reason := "--build-std"
		if opts.Sanitizer == SanitizerMemory {
			reason = "the memory sanitizer (which requires --build-std)"
		} else if opts.Careful {
			reason = "--careful (which implies --build-std)"
		}
		return errors.Errorf("coverage instrumentation can't be used with %s", reason)
	}
	return nil
}

// Args renders the options as command-line flags. Options which have
// their default value are omitted. ParseBuildFlags parses the result
// back into equal options.
func (opts *BuildOptions) Args() []string {
	var args []string
	flag := func(format string, a ...any) {
		args = append(args, fmt.Sprintf(format, a...))
	}

	if opts.Dev {
		flag("-D")
	}
	if opts.Release {
		flag("-O")
	}
	if opts.DebugAssertions {
		flag("-a")
	}
	if opts.Verbose {
		flag("-v")
	}
	if opts.NoDefaultFeatures {
		flag("--no-default-features")
	}
	if opts.AllFeatures {
		flag("--all-features")
	}
	if opts.Features != "" {
		flag("--features=%s", opts.Features)
	}
	if opts.Sanitizer != SanitizerAddress {
		flag("--sanitizer=%s", opts.Sanitizer)
	}
	if opts.BuildStd {
		flag("--build-std")
	}
	if opts.Careful {
		flag("--careful")
	}
	if opts.Triple != "" {
		flag("--target=%s", opts.Triple)
	}
	for _, f := range opts.UnstableFlags {
		flag("-Z%s", f)
	}
	if opts.TargetDir != "" {
		flag("--target-dir=%s", opts.TargetDir)
	}
	if opts.Coverage {
		flag("--coverage")
	}
	if opts.StripDeadCode {
		flag("--strip-dead-code")
	}
	if opts.NoCfgFuzzing {
		flag("--no-cfg-fuzzing")
	}
	if opts.NoTraceCompares {
		flag("--no-trace-compares")
	}
	if opts.TraceDivs {
		flag("--trace-divs")
	}
	if opts.TraceGeps {
		flag("--trace-geps")
	}
	if opts.DisableBranchFolding {
		flag("--disable-branch-folding")
	}
	return args
}

// String renders the flags returned by Args, each preceded by a space,
// so that they can be appended to a command line.
func (opts *BuildOptions) String() string {
	var b strings.Builder
	for _, arg := range opts.Args() {
		b.WriteString(" ")
		b.WriteString(arg)
	}
	return b.String()
}
