//go:build unix

package sandbox

import (
	"context"
	"os/exec"
	"syscall"
	"time"
)

// setpgid puts the child in its own process group so a timeout can kill
// the whole tree (e.g. a shell and the pipeline it spawned) rather than
// just the immediate child.
func setpgid(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// runWithProcessGroup runs cmd to completion, sending SIGTERM to the whole
// process group when ctx is cancelled and escalating to SIGKILL if the
// group hasn't exited shortly after.
func runWithProcessGroup(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		pgid := cmd.Process.Pid
		syscall.Kill(-pgid, syscall.SIGTERM)
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			syscall.Kill(-pgid, syscall.SIGKILL)
			return <-done
		}
	}
}
