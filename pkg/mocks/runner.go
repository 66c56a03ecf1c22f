package mocks

import (
	"context"
	"syscall"

	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slices"

	"code-intelligence.com/cargo-fuzz/util/executil"
)

type RunnerMock struct {
	mock.Mock
}

func (m *RunnerMock) Run(ctx context.Context, inv *executil.Invocation) (*executil.Outcome, error) {
	args := m.Called(inv)
	outcome, _ := args.Get(0).(*executil.Outcome)
	return outcome, args.Error(1)
}

// InvocationOf matches invocations of the program at path
func InvocationOf(path string) interface{} {
	return mock.MatchedBy(func(inv *executil.Invocation) bool {
		return inv.Path == path
	})
}

// InvocationWithArgs matches invocations of the program at path which
// contain all of the given arguments.
func InvocationWithArgs(path string, arg ...string) interface{} {
	return mock.MatchedBy(func(inv *executil.Invocation) bool {
		if inv.Path != path {
			return false
		}
		for _, a := range arg {
			if !slices.Contains(inv.Args, a) {
				return false
			}
		}
		return true
	})
}

// InvocationWithEnv matches invocations of the program at path whose
// environment contains the given variable, regardless of its value.
func InvocationWithEnv(path string, key string) interface{} {
	return mock.MatchedBy(func(inv *executil.Invocation) bool {
		if inv.Path != path {
			return false
		}
		for _, e := range inv.Env {
			if len(e) > len(key) && e[:len(key)+1] == key+"=" {
				return true
			}
		}
		return false
	})
}

// Success is the outcome of a process which exited with status zero
func Success() *executil.Outcome {
	return &executil.Outcome{}
}

// Interrupted is the outcome of a process which was terminated because
// the context was done
func Interrupted() *executil.Outcome {
	return &executil.Outcome{Signal: syscall.SIGTERM, Interrupted: true}
}

// Failure is the outcome of a process which exited with the given status
func Failure(exitCode int) *executil.Outcome {
	return &executil.Outcome{ExitCode: exitCode}
}
