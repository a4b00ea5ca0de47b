// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// podmanImageMissing is the exit status of `podman image exists` for an
// image that is not present.
const podmanImageMissing = 1

// PodmanEngine drives the podman CLI.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine looks podman up on PATH. A missing binary yields an
// engine that is not Available.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman") //nolint:errcheck // empty path means unavailable
	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, append([]BaseCLIEngineOption{WithName(EngineTypePodman.String())}, opts...)...),
	}
}

func (e *PodmanEngine) Name() string { return EngineTypePodman.String() }

func (e *PodmanEngine) Available() bool {
	return e.BinaryPath() != "" &&
		e.RunCommandStatus(context.Background(), "version", "--format", "{{.Version}}") == nil
}

func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists uses `podman image exists`, which reports a missing image
// through its exit status. Other failures are returned.
func (e *PodmanEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "exists", image)
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == podmanImageMissing:
		return false, nil
	default:
		return false, err
	}
}
