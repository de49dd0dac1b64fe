package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// maxCapturedOutput bounds how much of stdout/stderr is retained in memory.
// Output beyond this is truncated, not dropped from the child's pipes —
// the process still drains normally.
const maxCapturedOutput = 1 << 20 // 1 MiB

// limitedWriter is an io.Writer that keeps only the first max bytes written
// to it, discarding the rest while still reporting a full write so the
// underlying Cmd never sees a write error and stalls the child.
type limitedWriter struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.buf.Len() >= w.max {
		w.truncated = true
		return len(p), nil
	}
	remaining := w.max - w.buf.Len()
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		w.truncated = true
	} else {
		w.buf.Write(p)
	}
	return len(p), nil
}

func (w *limitedWriter) String() string { return w.buf.String() }

// None is the direct-exec sandbox backend: it runs commands as ordinary
// child processes with no additional confinement beyond a working
// directory, environment, and timeout. It is the default on platforms with
// no native sandboxing primitive wired up.
type None struct{}

var _ Sandbox = None{}

// Run executes in.Command as a child process, using a shell only when
// RequiresShell reports the command needs one.
func (None) Run(ctx context.Context, in ExecInput) (ExecResult, error) {
	start := time.Now()

	if in.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}

	cmd, err := buildCmd(ctx, in)
	if err != nil {
		return ExecResult{}, err
	}

	var stdout, stderr limitedWriter
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	setpgid(cmd)

	runErr := runWithProcessGroup(ctx, cmd)
	res := ExecResult{
		Stdout:       stdout.String(),
		Stderr:       stderr.String(),
		DurationSecs: time.Since(start).Seconds(),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if runErr != nil {
		return res, fmt.Errorf("sandbox: run %v: %w", in.Command, runErr)
	}
	res.ExitCode = 0
	return res, nil
}

// buildCmd decides between a direct exec and a shell-wrapped exec based on
// RequiresShell, and applies workdir/env.
func buildCmd(ctx context.Context, in ExecInput) (*exec.Cmd, error) {
	if len(in.Command) == 0 {
		return nil, fmt.Errorf("sandbox: empty command")
	}

	var cmd *exec.Cmd
	if RequiresShell(in.Command) {
		line := joinShellWords(in.Command)
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", line)
	} else {
		cmd = exec.CommandContext(ctx, in.Command[0], in.Command[1:]...)
	}

	if in.Workdir != "" {
		cmd.Dir = in.Workdir
	}
	if len(in.Env) > 0 {
		cmd.Env = mergedEnv(in.Env)
	}
	return cmd, nil
}

func joinShellWords(words []string) string {
	var b bytes.Buffer
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return b.String()
}
