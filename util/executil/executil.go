package executil

import (
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"

	"code-intelligence.com/cargo-fuzz/pkg/log"
)

const (
	// Duration we wait after sending a SIGTERM to the process before we
	// send a SIGKILL.
	terminationGracePeriod = 3 * time.Second
)

// Cmd provides the same functionality as exec.Cmd plus termination of
// the process once the context is done. The process stays in the
// process group of the caller, so signals sent by the terminal reach it
// directly.
type Cmd struct {
	*exec.Cmd
	ctx      context.Context
	waitDone chan struct{}
}

func CommandContext(ctx context.Context, name string, arg ...string) *Cmd {
	// We don't pass the context to exec.CommandContext, because that
	// kills the process with SIGKILL right away, which doesn't give
	// libFuzzer a chance to print its final stats.
	return &Cmd{Cmd: exec.Command(name, arg...), ctx: ctx}
}

// Does the same as exec.Cmd.Start(), but also terminates the process
// when the context is done before the process exited.
func (c *Cmd) Start() error {
	if c.Process != nil {
		return errors.New("exec: already started")
	}

	err := c.Cmd.Start()
	if err != nil {
		return errors.WithStack(err)
	}

	c.waitDone = make(chan struct{})
	if c.ctx != nil {
		go func() {
			select {
			case <-c.ctx.Done():
				log.Debugf("Terminating process %d: %s", c.Process.Pid, c.ctx.Err().Error())
				c.terminate()
			case <-c.waitDone:
			}
		}()
	}

	return nil
}

// Does the same as exec.Cmd.Wait(). Exit errors are returned unwrapped
// so that callers can inspect them with errors.As.
func (c *Cmd) Wait() error {
	err := c.Cmd.Wait()
	if c.waitDone != nil {
		close(c.waitDone)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return errors.WithStack(err)
}

// Same as exec.Cmd.Run() but uses the wrapper methods of this struct.
func (c *Cmd) Run() error {
	err := c.Start()
	if err != nil {
		return err
	}

	return c.Wait()
}
