package cargo

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/Masterminds/semver"
	"github.com/stretchr/testify/assert"

	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/toolchain"
)

var linuxToolchain = &toolchain.Toolchain{
	Rustc:   "rustc",
	Host:    "x86_64-unknown-linux-gnu",
	Version: semver.MustParse("1.78.0"),
}

func rustFlagsOf(tr *Translation) []string {
	return strings.Split(tr.Env["RUSTFLAGS"], " ")
}

func TestTranslate_Defaults(t *testing.T) {
	tr := Translate(&options.BuildOptions{}, linuxToolchain, "fuzz", nil)

	assert.Equal(t, []string{"--target", "x86_64-unknown-linux-gnu", "--release"}, tr.Args)
	assert.Equal(t, "-Cpasses=sancov-module"+
		" -Cllvm-args=-sanitizer-coverage-level=4"+
		" -Cllvm-args=-sanitizer-coverage-inline-8bit-counters"+
		" -Cllvm-args=-sanitizer-coverage-pc-table"+
		" -Cllvm-args=-sanitizer-coverage-trace-compares"+
		" --cfg fuzzing"+
		" -Clink-dead-code"+
		" -Zsanitizer=address"+
		" -Cllvm-args=-sanitizer-coverage-stack-depth"+
		" -Cdebug-assertions"+
		" -Ccodegen-units=1", tr.Env["RUSTFLAGS"])
	assert.Equal(t, "detect_odr_violation=0", tr.Env["ASAN_OPTIONS"])
	assert.NotContains(t, tr.Env, "TSAN_OPTIONS")
}

func TestTranslate_AsanOptionsAreAppended(t *testing.T) {
	tr := Translate(&options.BuildOptions{}, linuxToolchain, "fuzz", []string{"ASAN_OPTIONS=foo=1"})
	assert.Equal(t, "foo=1:detect_odr_violation=0", tr.Env["ASAN_OPTIONS"])

	// The default is appended even if the user already set it
	tr = Translate(&options.BuildOptions{}, linuxToolchain, "fuzz", []string{"ASAN_OPTIONS=detect_odr_violation=1"})
	assert.Equal(t, "detect_odr_violation=1:detect_odr_violation=0", tr.Env["ASAN_OPTIONS"])
}

func TestTranslate_TsanOptions(t *testing.T) {
	opts := &options.BuildOptions{Sanitizer: options.SanitizerThread}
	tr := Translate(opts, linuxToolchain, "fuzz", []string{"TSAN_OPTIONS=halt_on_error=1"})
	assert.Equal(t, "halt_on_error=1:report_signal_unsafe=0", tr.Env["TSAN_OPTIONS"])
	assert.NotContains(t, tr.Env, "ASAN_OPTIONS")
	assert.Contains(t, rustFlagsOf(tr), "-Zsanitizer=thread")
}

func TestTranslate_MemorySanitizerForcesBuildStd(t *testing.T) {
	opts := &options.BuildOptions{Sanitizer: options.SanitizerMemory, BuildStd: false}
	tr := Translate(opts, linuxToolchain, "fuzz", nil)

	assert.Contains(t, strings.Join(tr.Args, " "), "-Z build-std")
	flags := rustFlagsOf(tr)
	assert.Contains(t, flags, "-Zsanitizer=memory")
	assert.Contains(t, flags, "-Zsanitizer-memory-track-origins")
	assert.NotContains(t, tr.Env, "ASAN_OPTIONS")
}

func TestTranslate_BuildStd(t *testing.T) {
	tr := Translate(&options.BuildOptions{BuildStd: true}, linuxToolchain, "fuzz", nil)
	assert.Contains(t, strings.Join(tr.Args, " "), "-Z build-std")

	tr = Translate(&options.BuildOptions{Careful: true}, linuxToolchain, "fuzz", nil)
	assert.Contains(t, strings.Join(tr.Args, " "), "-Z build-std")
	assert.Contains(t, tr.Env["RUSTFLAGS"], "-Zextra-const-ub-checks -Zstrict-init-checks --cfg careful")

	tr = Translate(&options.BuildOptions{}, linuxToolchain, "fuzz", nil)
	assert.NotContains(t, strings.Join(tr.Args, " "), "build-std")
}

func TestTranslate_StableSanitizers(t *testing.T) {
	tc := &toolchain.Toolchain{Host: "x86_64-unknown-linux-gnu", Version: semver.MustParse("1.85.0-nightly")}
	tr := Translate(&options.BuildOptions{}, tc, "fuzz", nil)
	assert.Contains(t, rustFlagsOf(tr), "-Csanitizer=address")

	tr = Translate(&options.BuildOptions{Sanitizer: options.SanitizerNone}, tc, "fuzz", nil)
	assert.NotContains(t, tr.Env["RUSTFLAGS"], "sanitizer=")
}

func TestTranslate_UserRustFlagsComeLast(t *testing.T) {
	tr := Translate(&options.BuildOptions{}, linuxToolchain, "fuzz", []string{"RUSTFLAGS=-Cfoo -Cbar"})
	assert.True(t, strings.HasSuffix(tr.Env["RUSTFLAGS"], " -Ccodegen-units=1 -Cfoo -Cbar"))
}

func TestTranslate_DebugAssertions(t *testing.T) {
	tr := Translate(&options.BuildOptions{Release: true}, linuxToolchain, "fuzz", nil)
	assert.NotContains(t, rustFlagsOf(tr), "-Cdebug-assertions")

	tr = Translate(&options.BuildOptions{Release: true, DebugAssertions: true}, linuxToolchain, "fuzz", nil)
	assert.Contains(t, rustFlagsOf(tr), "-Cdebug-assertions")

	tr = Translate(&options.BuildOptions{Dev: true}, linuxToolchain, "fuzz", nil)
	assert.Contains(t, rustFlagsOf(tr), "-Cdebug-assertions")
	assert.NotContains(t, rustFlagsOf(tr), "-Ccodegen-units=1")
	assert.NotContains(t, tr.Args, "--release")
}

func TestTranslate_Instrumentation(t *testing.T) {
	opts := &options.BuildOptions{
		NoTraceCompares:      true,
		TraceDivs:            true,
		TraceGeps:            true,
		StripDeadCode:        true,
		NoCfgFuzzing:         true,
		DisableBranchFolding: true,
	}
	flags := rustFlagsOf(Translate(opts, linuxToolchain, "fuzz", nil))
	assert.NotContains(t, flags, "-Cllvm-args=-sanitizer-coverage-trace-compares")
	assert.Contains(t, flags, "-Cllvm-args=-sanitizer-coverage-trace-divs")
	assert.Contains(t, flags, "-Cllvm-args=-sanitizer-coverage-trace-geps")
	assert.NotContains(t, flags, "fuzzing")
	assert.NotContains(t, flags, "-Clink-dead-code")
	assert.Contains(t, flags, "-Cllvm-args=-simplifycfg-branch-fold-threshold=0")
}

func TestTranslate_Triples(t *testing.T) {
	tr := Translate(&options.BuildOptions{Triple: "x86_64-pc-windows-msvc"}, linuxToolchain, "fuzz", nil)
	assert.Equal(t, "x86_64-pc-windows-msvc", tr.Args[1])
	flags := rustFlagsOf(tr)
	assert.Contains(t, flags, "-Clink-arg=/include:main")
	assert.NotContains(t, flags, "-Cllvm-args=-sanitizer-coverage-stack-depth")
}

func TestTranslate_Features(t *testing.T) {
	opts := &options.BuildOptions{NoDefaultFeatures: true, Features: "a,b", Verbose: true, UnstableFlags: []string{"x", "y"}}
	tr := Translate(opts, linuxToolchain, "fuzz", nil)
	assert.Equal(t, []string{
		"--target", "x86_64-unknown-linux-gnu", "--release", "--verbose",
		"--no-default-features", "--features", "a,b", "-Z", "x", "-Z", "y",
	}, tr.Args)
}

func TestTranslate_Coverage(t *testing.T) {
	opts := &options.BuildOptions{Coverage: true, BuildStd: true}
	tr := Translate(opts, linuxToolchain, "fuzz", nil)

	assert.Contains(t, rustFlagsOf(tr), "-Cinstrument-coverage")
	assert.NotContains(t, strings.Join(tr.Args, " "), "build-std")
	coverageDir := filepath.Join("fuzz", "target", "x86_64-unknown-linux-gnu", "coverage")
	assert.Equal(t, []string{"--target-dir", coverageDir}, tr.Args[len(tr.Args)-2:])
}

func TestTargetDir(t *testing.T) {
	assert.Equal(t, "", TargetDir(&options.BuildOptions{}, linuxToolchain, "fuzz"))
	assert.Equal(t, "/tmp/t", TargetDir(&options.BuildOptions{TargetDir: "/tmp/t", Coverage: true}, linuxToolchain, "fuzz"))
}
