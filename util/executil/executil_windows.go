package executil

import (
	"context"
	"os"
	"os/exec"
	"strconv"
)

func (c *Cmd) terminate() {
	// Windows has no SIGTERM, TASKKILL /T also kills the processes
	// started by the child, like the fuzz target started by cargo.
	kill := exec.Command("TASKKILL", "/T", "/F", "/PID", strconv.Itoa(c.Process.Pid))
	kill.Stderr = os.Stderr
	kill.Stdout = os.Stderr
	_ = kill.Run()
}

// Windows has no exec(2), the caller is expected to exit with the
// status of the child.
func (r ProcessRunner) foreground(ctx context.Context, inv *Invocation) (*Outcome, error) {
	return r.supervised(ctx, inv)
}
