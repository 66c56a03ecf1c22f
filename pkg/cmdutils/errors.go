package cmdutils

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"

	"code-intelligence.com/cargo-fuzz/util/executil"
)

var ErrSilent = &SilentError{err: errors.New("SilentError")}

// SilentError indicates that the error message should not be printed
// when the error is handled.
type SilentError struct {
	err error
}

func (e SilentError) Error() string {
	return e.err.Error()
}

func (e SilentError) Unwrap() error {
	return e.err
}

// WrapSilentError wraps an existing error into a SilentError to avoid
// having the error message printed when the error is handled.
func WrapSilentError(err error) error {
	return &SilentError{err}
}

// IncorrectUsageError indicates that the command wasn't used correctly,
// for example because required arguments are missing.
// When an IncorrectUsageError is handled, the usage message should be
// printed.
type IncorrectUsageError struct {
	err error
}

func (e IncorrectUsageError) Error() string {
	return e.err.Error()
}

func (e IncorrectUsageError) Unwrap() error {
	return e.err
}

// WrapIncorrectUsageError wraps an existing error into a
// IncorrectUsageError to have the usage message printed when the error
// is handled.
func WrapIncorrectUsageError(err error) error {
	return &IncorrectUsageError{err}
}

func NewSignalError(signal syscall.Signal) *SignalError {
	return &SignalError{Signal: signal}
}

// WrapSignalError wraps an error caused by a process which was
// terminated by a signal, so that the exit code reflects the signal.
func WrapSignalError(err error, signal syscall.Signal) error {
	return &SignalError{err: err, Signal: signal}
}

// ErrInterrupted is returned when an external command was terminated
// because the user interrupted us. It's not printed and makes the
// command exit with 130, like shells do after SIGINT.
var ErrInterrupted = WrapSilentError(WrapSignalError(errors.New("interrupted"), syscall.SIGINT))

// SignalError indicates that the command should exit with 128 plus the
// number of the signal, like shells do.
type SignalError struct {
	err    error
	Signal syscall.Signal
}

func (e SignalError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("terminated by signal %d (%s)", int(e.Signal), e.Signal.String())
}

func (e SignalError) Unwrap() error {
	return e.err
}

// ExecError is returned when an external command failed. It carries the
// command line, which is included in the error message.
type ExecError struct {
	err         error
	CommandLine string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %s", e.CommandLine, e.err.Error())
}

func (e *ExecError) Unwrap() error {
	return e.err
}

// WrapExecError wraps an error of a command into an ExecError.
func WrapExecError(err error, inv *executil.Invocation) error {
	return &ExecError{err: err, CommandLine: inv.String()}
}

// NewExecError creates an ExecError for an invocation which terminated
// with a non-successful outcome.
func NewExecError(inv *executil.Invocation, outcome *executil.Outcome) error {
	return &ExecError{err: errors.New(outcome.String()), CommandLine: inv.String()}
}
