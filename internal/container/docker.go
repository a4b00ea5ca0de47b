// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// dockerVersionFormat asks for the daemon version, so Available fails when
// only the client is installed.
const dockerVersionFormat = "{{.Server.Version}}"

// DockerEngine drives the docker CLI.
type DockerEngine struct {
	*BaseCLIEngine
}

// NewDockerEngine looks docker up on PATH. A missing binary yields an
// engine that is not Available.
func NewDockerEngine(opts ...BaseCLIEngineOption) *DockerEngine {
	path, _ := exec.LookPath("docker") //nolint:errcheck // empty path means unavailable
	return &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, append([]BaseCLIEngineOption{WithName(EngineTypeDocker.String())}, opts...)...),
	}
}

func (e *DockerEngine) Name() string { return EngineTypeDocker.String() }

func (e *DockerEngine) Available() bool {
	return e.BinaryPath() != "" &&
		e.RunCommandStatus(context.Background(), "version", "--format", dockerVersionFormat) == nil
}

func (e *DockerEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", dockerVersionFormat)
	if err != nil {
		return "", fmt.Errorf("docker version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists treats any inspect failure as a missing image; docker does
// not distinguish the two by exit status.
func (e *DockerEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	return e.RunCommandStatus(ctx, "image", "inspect", "--format", "{{.Id}}", image) == nil, nil
}
