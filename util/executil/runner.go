package executil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"code-intelligence.com/cargo-fuzz/pkg/log"
	"code-intelligence.com/cargo-fuzz/util/stringutil"
)

// ExecutionStyle selects how an Invocation is executed.
type ExecutionStyle int

const (
	// Supervised spawns the program as a child process and waits for it
	// to terminate.
	Supervised ExecutionStyle = iota
	// Foreground replaces the current process image with the program.
	// On success, Run never returns. Platforms without exec(2) fall back
	// to Supervised.
	Foreground
)

func (s ExecutionStyle) String() string {
	switch s {
	case Supervised:
		return "supervised"
	case Foreground:
		return "foreground"
	default:
		return fmt.Sprintf("ExecutionStyle(%d)", int(s))
	}
}

// Invocation describes a single execution of an external program.
type Invocation struct {
	Path string
	Args []string
	// Env is the complete environment of the program. If nil, the
	// environment of the current process is used.
	Env []string
	// Dir is the working directory. If empty, the current working
	// directory is used.
	Dir   string
	Style ExecutionStyle
	// If Capture is true, stdout and stderr are collected into the
	// Outcome instead of being inherited.
	Capture bool
	// If NullStdin is true, stdin is connected to the null device.
	NullStdin bool
}

// String returns the quoted command line of the invocation.
func (inv *Invocation) String() string {
	return stringutil.CommandLine(inv.Path, inv.Args...)
}

// Outcome describes how a Supervised invocation terminated.
type Outcome struct {
	ExitCode int
	// Signal is the signal which terminated the process, zero if the
	// process exited normally.
	Signal syscall.Signal
	// Interrupted is true if the process was terminated because the
	// context was done, e.g. after the user pressed Ctrl-C.
	Interrupted bool
	Stdout      []byte
	Stderr      []byte
}

// Success reports whether the process exited with status zero.
func (o *Outcome) Success() bool {
	return o.Signal == 0 && o.ExitCode == 0
}

func (o *Outcome) String() string {
	if o.Signal != 0 {
		return fmt.Sprintf("signal: %d (%s)", int(o.Signal), o.Signal.String())
	}
	return fmt.Sprintf("exit status: %d", o.ExitCode)
}

// Runner executes invocations. A non-zero exit status is reported via
// the Outcome. An error is only returned if the program could not be
// started or waited for.
type Runner interface {
	Run(ctx context.Context, inv *Invocation) (*Outcome, error)
}

// ProcessRunner is the Runner which executes real processes.
type ProcessRunner struct{}

var _ Runner = ProcessRunner{}

func (r ProcessRunner) Run(ctx context.Context, inv *Invocation) (*Outcome, error) {
	log.Debugf("Command (%s): %s", inv.Style, inv.String())
	if inv.Style == Foreground {
		return r.foreground(ctx, inv)
	}
	return r.supervised(ctx, inv)
}

func (r ProcessRunner) supervised(ctx context.Context, inv *Invocation) (*Outcome, error) {
	cmd := CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Env = inv.Env
	cmd.Dir = inv.Dir
	if !inv.NullStdin {
		cmd.Stdin = os.Stdin
	}

	if !inv.Capture {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		outcome, err := outcomeFromError(cmd.Run(), nil, nil)
		return interrupted(ctx, outcome, err)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	err = cmd.Start()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to start %s", inv.String())
	}

	// All reads from the pipes must be completed before Wait is called
	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdout, stdoutPipe)
		return errors.WithStack(err)
	})
	g.Go(func() error {
		_, err := io.Copy(&stderr, stderrPipe)
		return errors.WithStack(err)
	})
	drainErr := g.Wait()
	waitErr := cmd.Wait()
	if drainErr != nil {
		return nil, drainErr
	}
	outcome, err := outcomeFromError(waitErr, stdout.Bytes(), stderr.Bytes())
	return interrupted(ctx, outcome, err)
}

// interrupted marks a failed outcome as interrupted if the context was
// done before the process exited
func interrupted(ctx context.Context, outcome *Outcome, err error) (*Outcome, error) {
	if err != nil || outcome.Success() {
		return outcome, err
	}
	outcome.Interrupted = ctx.Err() != nil
	return outcome, nil
}

func outcomeFromError(err error, stdout, stderr []byte) (*Outcome, error) {
	outcome := &Outcome{Stdout: stdout, Stderr: stderr}
	if err == nil {
		return outcome, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, err
	}
	outcome.ExitCode = exitErr.ExitCode()
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		outcome.Signal = status.Signal()
	}
	return outcome, nil
}
