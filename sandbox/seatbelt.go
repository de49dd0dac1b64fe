package sandbox

import (
	"context"
	"fmt"
	"os/exec"
)

// seatbeltProfile is a minimal macOS sandbox-exec profile: it allows
// read/fork/exec everywhere but restricts writes to the workspace root and
// a small set of scratch directories, and allows outbound network only
// when the Seatbelt's AllowNetwork field is set.
const seatbeltProfile = `(version 1)
(deny default)
(allow process-fork)
(allow process-exec)
(allow file-read*)
(allow file-write*
  (subpath "%s")
  (subpath "/tmp")
  (subpath "/private/tmp")
  (subpath "/private/var/folders"))
(allow sysctl-read)
%s
`

const seatbeltNetworkRule = `(allow network*)`

// Seatbelt runs commands under macOS's sandbox-exec with a profile scoped
// to the workspace directory, denying writes outside it by default.
type Seatbelt struct {
	// AllowNetwork permits outbound network access inside the sandbox.
	AllowNetwork bool
}

var _ Sandbox = Seatbelt{}

// Run wraps in.Command with `sandbox-exec -p <profile> -- <command>` and
// delegates the rest of execution (timeout, output capture, process-group
// cancellation) to the same machinery as None.
func (s Seatbelt) Run(ctx context.Context, in ExecInput) (ExecResult, error) {
	if _, err := exec.LookPath("sandbox-exec"); err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: sandbox-exec not available: %w", err)
	}
	if in.Workdir == "" {
		return ExecResult{}, fmt.Errorf("sandbox: seatbelt requires a workdir to scope writes to")
	}

	netRule := ""
	if s.AllowNetwork {
		netRule = seatbeltNetworkRule
	}
	profile := fmt.Sprintf(seatbeltProfile, in.Workdir, netRule)

	wrapped := ExecInput{
		Command: append([]string{"sandbox-exec", "-p", profile, "--"}, in.Command...),
		Workdir: in.Workdir,
		Timeout: in.Timeout,
		Env:     in.Env,
	}
	return None{}.Run(ctx, wrapped)
}
