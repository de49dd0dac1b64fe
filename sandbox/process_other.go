//go:build !unix

package sandbox

import (
	"context"
	"os/exec"
)

// setpgid is a no-op on non-Unix platforms; process-group cancellation
// relies on the OS scheduler/exec.CommandContext's own cleanup instead.
func setpgid(cmd *exec.Cmd) {}

// runWithProcessGroup falls back to plain Run; context cancellation is
// still honored by exec.CommandContext, which kills the direct child.
func runWithProcessGroup(ctx context.Context, cmd *exec.Cmd) error {
	return cmd.Run()
}
