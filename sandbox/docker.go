package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// Docker runs commands inside a throwaway container, giving the strongest
// isolation of the three backends at the cost of per-call container
// startup latency. It mounts the workdir read-write and nothing else.
type Docker struct {
	Client *client.Client
	// Image is the container image to run commands in, e.g. "alpine:3.20".
	Image string
}

var _ Sandbox = Docker{}

// NewDocker connects to the local Docker daemon using the environment's
// standard DOCKER_HOST/DOCKER_CERT_PATH conventions.
func NewDocker(image string) (Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return Docker{}, fmt.Errorf("sandbox: docker client: %w", err)
	}
	return Docker{Client: cli, Image: image}, nil
}

// Run creates a container bound to in.Workdir, runs in.Command inside it,
// collects combined stdout/stderr, and removes the container afterward.
func (d Docker) Run(ctx context.Context, in ExecInput) (ExecResult, error) {
	start := time.Now()

	if in.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}

	const containerWorkdir = "/workspace"

	var env []string
	for k, v := range in.Env {
		env = append(env, k+"="+v)
	}

	resp, err := d.Client.ContainerCreate(ctx, &container.Config{
		Image:      d.Image,
		Cmd:        in.Command,
		Env:        env,
		WorkingDir: containerWorkdir,
		Tty:        false,
	}, &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: in.Workdir,
			Target: containerWorkdir,
		}},
		AutoRemove: false,
	}, nil, nil, "")
	if err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: create container: %w", err)
	}
	defer d.Client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	if err := d.Client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: start container: %w", err)
	}

	statusCh, errCh := d.Client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)

	res := ExecResult{}
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			res.TimedOut = true
			res.ExitCode = -1
			res.DurationSecs = time.Since(start).Seconds()
			return res, nil
		}
		return res, fmt.Errorf("sandbox: wait container: %w", err)
	case status := <-statusCh:
		res.ExitCode = int(status.StatusCode)
	}

	logs, err := d.Client.ContainerLogs(context.Background(), resp.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return res, fmt.Errorf("sandbox: fetch logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, io.LimitReader(logs, maxCapturedOutput)); err != nil && err != io.EOF {
		return res, fmt.Errorf("sandbox: demux logs: %w", err)
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.DurationSecs = time.Since(start).Seconds()
	return res, nil
}
