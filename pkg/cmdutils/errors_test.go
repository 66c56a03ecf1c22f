package cmdutils

import (
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code-intelligence.com/cargo-fuzz/util/executil"
)

func TestWrapSilentError(t *testing.T) {
	errOriginal := errors.New("TestError")
	errSilent := WrapSilentError(errOriginal)

	var silentErr *SilentError
	assert.ErrorAs(t, errSilent, &silentErr)
	assert.ErrorIs(t, errSilent, errOriginal)
}

func TestNewExecError(t *testing.T) {
	inv := &executil.Invocation{Path: "cargo", Args: []string{"build"}}
	err := NewExecError(inv, &executil.Outcome{ExitCode: 101})

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, `"cargo" "build"`, execErr.CommandLine)
	assert.Equal(t, `"cargo" "build": exit status: 101`, err.Error())
}

func TestNeedsProject(t *testing.T) {
	run := func(*cobra.Command, []string) {}
	root := &cobra.Command{Use: "root"}
	cmd := &cobra.Command{Use: "test", Run: run}
	root.AddCommand(cmd)
	require.True(t, NeedsProject(cmd))

	DisableProjectCheck(cmd)
	require.False(t, NeedsProject(cmd))
}

func TestWrapSignalError(t *testing.T) {
	errOriginal := errors.New("Fuzz target exited with signal: 6 (aborted)")
	err := WrapSignalError(errOriginal, syscall.SIGABRT)

	var signalErr *SignalError
	require.ErrorAs(t, err, &signalErr)
	assert.Equal(t, syscall.SIGABRT, signalErr.Signal)
	assert.Equal(t, errOriginal.Error(), err.Error())
	assert.ErrorIs(t, err, errOriginal)

	assert.Contains(t, NewSignalError(syscall.SIGINT).Error(), "terminated by signal 2")
}

func TestNeedsToolchain(t *testing.T) {
	run := func(*cobra.Command, []string) {}
	root := &cobra.Command{Use: "root"}
	cmd := &cobra.Command{Use: "test", Run: run}
	root.AddCommand(cmd)
	require.True(t, NeedsToolchain(cmd))

	DisableToolchainCheck(cmd)
	require.False(t, NeedsToolchain(cmd))
	require.True(t, NeedsProject(cmd))
}
