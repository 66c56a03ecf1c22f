// Package toolchain provides information about the Rust toolchain which
// builds the fuzz targets.
package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/util/envutil"
	"code-intelligence.com/cargo-fuzz/util/executil"
)

// The first release in which sanitizers are stable and -Zsanitizer was
// replaced by -Csanitizer, even on nightly.
var sanitizersStableVersion = semver.MustParse("1.85.0")

// Toolchain is resolved once per invocation of the tool and passed to
// everything which depends on the host or the compiler version.
type Toolchain struct {
	// Rustc is the path or name of the rustc executable
	Rustc   string
	Host    string
	Version *semver.Version
	// Nightly is true if the compiler is a nightly compiler or
	// RUSTC_BOOTSTRAP is set, which enables nightly features on stable.
	Nightly bool
}

// Resolve queries the toolchain via `rustc -vV`. The rustc executable
// can be overridden via the RUSTC environment variable, like cargo
// does.
func Resolve(ctx context.Context, runner executil.Runner, env []string) (*Toolchain, error) {
	rustc := envutil.Getenv(env, "RUSTC")
	if rustc == "" {
		rustc = "rustc"
	}

	inv := &executil.Invocation{
		Path:      rustc,
		Args:      []string{"-vV"},
		Env:       env,
		Capture:   true,
		NullStdin: true,
	}
	outcome, err := runner.Run(ctx, inv)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to invoke rustc! Is it in your $PATH?")
	}
	if !outcome.Success() {
		return nil, cmdutils.NewExecError(inv, outcome)
	}

	tc, err := ParseVerboseVersion(string(outcome.Stdout))
	if err != nil {
		return nil, err
	}
	tc.Rustc = rustc
	_, bootstrap := envutil.LookupEnv(env, "RUSTC_BOOTSTRAP")
	tc.Nightly = tc.Nightly || bootstrap
	return tc, nil
}

// ParseVerboseVersion parses the output of `rustc -vV`, which looks like
//
//	rustc 1.78.0 (9b00956e5 2024-04-29)
//	binary: rustc
//	host: x86_64-unknown-linux-gnu
//	release: 1.78.0
func ParseVerboseVersion(output string) (*Toolchain, error) {
	tc := &Toolchain{}
	var release string

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "host":
			tc.Host = strings.TrimSpace(value)
		case "release":
			release = strings.TrimSpace(value)
		}
	}

	if tc.Host == "" {
		return nil, errors.Errorf("No host triple found in `rustc -vV` output:\n%s", output)
	}
	if release == "" {
		return nil, errors.Errorf("No release found in `rustc -vV` output:\n%s", output)
	}
	var err error
	tc.Version, err = semver.NewVersion(release)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse rustc release %q", release)
	}
	tc.Nightly = strings.Contains(tc.Version.Prerelease(), "nightly")
	return tc, nil
}

// HasStableSanitizers returns whether the compiler has stabilized
// sanitizers. Only major and minor version are compared, so nightly
// builds of the stabilizing release count as well.
func (tc *Toolchain) HasStableSanitizers() bool {
	v := semver.MustParse(fmt.Sprintf("%d.%d.0", tc.Version.Major(), tc.Version.Minor()))
	return !v.LessThan(sanitizersStableVersion)
}

// SanitizerFlag returns the rustc flag which selects a sanitizer
func (tc *Toolchain) SanitizerFlag() string {
	if tc.HasStableSanitizers() {
		return "-Csanitizer"
	}
	return "-Zsanitizer"
}

// TripleOrHost returns triple or the host triple if triple is empty
func (tc *Toolchain) TripleOrHost(triple string) string {
	if triple == "" {
		return tc.Host
	}
	return triple
}

// LLVMProfDataPath returns the path of the llvm-profdata executable
// which is installed as part of the llvm-tools-preview component. If
// that's not installed, llvm-profdata is looked up in the PATH.
func (tc *Toolchain) LLVMProfDataPath(ctx context.Context, runner executil.Runner, env []string) (string, error) {
	inv := &executil.Invocation{
		Path:      tc.Rustc,
		Args:      []string{"--print", "sysroot"},
		Env:       env,
		Capture:   true,
		NullStdin: true,
	}
	outcome, err := runner.Run(ctx, inv)
	if err != nil {
		return "", err
	}
	if !outcome.Success() {
		return "", cmdutils.NewExecError(inv, outcome)
	}

	sysroot := string(bytes.TrimSpace(outcome.Stdout))
	name := "llvm-profdata"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	path := filepath.Join(sysroot, "lib", "rustlib", tc.Host, "bin", name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	path, err = exec.LookPath("llvm-profdata")
	if err != nil {
		// Return the path in the sysroot, so that the error about the
		// missing executable refers to the expected location.
		return filepath.Join(sysroot, "lib", "rustlib", tc.Host, "bin", name), nil
	}
	return path, nil
}
