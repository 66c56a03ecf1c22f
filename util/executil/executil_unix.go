//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package executil

import (
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"code-intelligence.com/cargo-fuzz/pkg/log"
)

func (c *Cmd) terminate() {
	log.Debugf("Sending SIGTERM to process %d", c.Process.Pid)
	// We ignore errors here because the process might not exist anymore
	// at this point.
	_ = c.Process.Signal(syscall.SIGTERM)

	// Give the process a few seconds to exit
	select {
	case <-time.After(terminationGracePeriod):
		log.Debugf("Sending SIGKILL to process %d", c.Process.Pid)
		_ = c.Process.Kill()
	case <-c.waitDone:
		// The process has already exited, nothing else to do here.
	}
}

// foreground replaces the current process with the invoked program. It
// only returns if the replacement failed.
func (r ProcessRunner) foreground(_ context.Context, inv *Invocation) (*Outcome, error) {
	path, err := exec.LookPath(inv.Path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	env := inv.Env
	if env == nil {
		env = os.Environ()
	}
	if inv.Dir != "" {
		err = os.Chdir(inv.Dir)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}
	argv := append([]string{inv.Path}, inv.Args...)
	err = unix.Exec(path, argv, env)
	return nil, errors.Wrapf(err, "failed to exec %s", inv.String())
}
