package cargo

import (
	"path/filepath"
	"strings"

	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/toolchain"
	"code-intelligence.com/cargo-fuzz/util/envutil"
)

// Translation is the result of translating build options into cargo
// arguments and environment variables.
type Translation struct {
	Args []string
	// Env contains the environment variables which must be set in
	// addition to the inherited environment.
	Env map[string]string
}

// Translate translates the build options into the arguments and
// environment variables of a cargo invocation. environ is the
// environment the invocation inherits, which is used to merge the
// user's RUSTFLAGS and sanitizer options with our own. The options must
// have been validated.
func Translate(opts *options.BuildOptions, tc *toolchain.Toolchain, fuzzDir string, environ []string) *Translation {
	triple := tc.TripleOrHost(opts.Triple)

	// --target=<triple> is always passed, even for the host triple,
	// because otherwise cargo would pass RUSTFLAGS to build scripts and
	// proc macros as well
	args := []string{"--target", triple}
	// Release mode is the default unless dev mode is requested
	if !opts.Dev {
		args = append(args, "--release")
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	if opts.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if opts.AllFeatures {
		args = append(args, "--all-features")
	}
	if opts.Features != "" {
		args = append(args, "--features", opts.Features)
	}
	for _, flag := range opts.UnstableFlags {
		args = append(args, "-Z", flag)
	}
	// The memory sanitizer needs an instrumented standard library to
	// avoid false positives
	if opts.Sanitizer == options.SanitizerMemory || opts.Careful || (opts.BuildStd && !opts.Coverage) {
		args = append(args, "-Z", "build-std")
	}
	if targetDir := TargetDir(opts, tc, fuzzDir); targetDir != "" {
		args = append(args, "--target-dir", targetDir)
	}

	env := map[string]string{
		"RUSTFLAGS": strings.Join(rustFlags(opts, tc, triple, environ), " "),
	}

	// For ASan and TSan we have default options which are appended to
	// the user's options, so that users can still override them. The
	// sanitizer runtimes use the last occurrence of an option.
	switch opts.Sanitizer {
	case options.SanitizerAddress:
		env["ASAN_OPTIONS"] = envutil.AppendToColonSeparatedList(envutil.Getenv(environ, "ASAN_OPTIONS"), "detect_odr_violation=0")
	case options.SanitizerThread:
		env["TSAN_OPTIONS"] = envutil.AppendToColonSeparatedList(envutil.Getenv(environ, "TSAN_OPTIONS"), "report_signal_unsafe=0")
	}

	return &Translation{Args: args, Env: env}
}

func rustFlags(opts *options.BuildOptions, tc *toolchain.Toolchain, triple string, environ []string) []string {
	flags := []string{
		// ----- libFuzzer instrumentation -----
		"-Cpasses=sancov-module",
		"-Cllvm-args=-sanitizer-coverage-level=4",
		"-Cllvm-args=-sanitizer-coverage-inline-8bit-counters",
		"-Cllvm-args=-sanitizer-coverage-pc-table",
	}
	if !opts.NoTraceCompares {
		flags = append(flags, "-Cllvm-args=-sanitizer-coverage-trace-compares")
	}
	if opts.TraceDivs {
		flags = append(flags, "-Cllvm-args=-sanitizer-coverage-trace-divs")
	}
	if opts.TraceGeps {
		flags = append(flags, "-Cllvm-args=-sanitizer-coverage-trace-geps")
	}
	if !opts.NoCfgFuzzing {
		flags = append(flags, "--cfg", "fuzzing")
	}
	// Dead code is linked by default to prevent link errors with some
	// optimized targets
	if !opts.StripDeadCode {
		flags = append(flags, "-Clink-dead-code")
	}
	if opts.Coverage {
		flags = append(flags, "-Cinstrument-coverage")
	}
	if opts.DisableBranchFolding {
		flags = append(flags, "-Cllvm-args=-simplifycfg-branch-fold-threshold=0")
	}

	// ----- Sanitizers -----
	switch opts.Sanitizer {
	case options.SanitizerNone:
	case options.SanitizerMemory:
		flags = append(flags, tc.SanitizerFlag()+"=memory", "-Zsanitizer-memory-track-origins")
	default:
		flags = append(flags, tc.SanitizerFlag()+"="+opts.Sanitizer.String())
	}
	if opts.Careful {
		flags = append(flags, "-Zextra-const-ub-checks", "-Zstrict-init-checks", "--cfg", "careful")
	}

	// ----- Platform specific flags -----
	if strings.Contains(triple, "-linux-") {
		flags = append(flags, "-Cllvm-args=-sanitizer-coverage-stack-depth")
	}
	// Debug assertions are enabled unless release mode was requested
	// explicitly without also requesting debug assertions
	if !opts.Release || opts.DebugAssertions {
		flags = append(flags, "-Cdebug-assertions")
	}
	if strings.Contains(triple, "-msvc") {
		// The entrypoint is in the bundled libfuzzer rlib, this makes
		// the linker find it
		flags = append(flags, "-Clink-arg=/include:main")
	}
	// With more than one codegen unit, the sancov passes prevent
	// ThinLTO from importing any function, which makes release builds
	// several times slower
	if !opts.Dev {
		flags = append(flags, "-Ccodegen-units=1")
	}

	// The user's flags come last, so that they win
	if userFlags := envutil.Getenv(environ, "RUSTFLAGS"); userFlags != "" {
		flags = append(flags, userFlags)
	}
	return flags
}

// TargetDir returns the cargo target directory to use, or an empty
// string if cargo's default should be used. Coverage builds use their
// own target directory, so that fuzzing and coverage builds don't
// invalidate each other.
func TargetDir(opts *options.BuildOptions, tc *toolchain.Toolchain, fuzzDir string) string {
	if opts.TargetDir != "" {
		return opts.TargetDir
	}
	if opts.Coverage {
		return filepath.Join(fuzzDir, "target", tc.TripleOrHost(opts.Triple), "coverage")
	}
	return ""
}
