// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/browserbox/browserbox/pkg/types"
)

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

var (
	// ErrNoEngineAvailable is the sentinel wrapped by EngineNotAvailableError.
	ErrNoEngineAvailable = errors.New("no container engine available")

	// ErrInvalidBuildOptions is the sentinel wrapped by BuildOptions.Validate errors.
	ErrInvalidBuildOptions = errors.New("invalid build options")

	// ErrInvalidRunOptions is the sentinel wrapped by RunOptions.Validate errors.
	ErrInvalidRunOptions = errors.New("invalid run options")
)

type (
	// Engine is the set of container operations used by the builder and the CLI.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available reports whether the engine binary is installed and its
		// daemon or service answers.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)

		// Build builds an image from a Dockerfile.
		Build(ctx context.Context, opts BuildOptions) error
		// Tag adds target as a name for the image source refers to.
		Tag(ctx context.Context, source, target string) error
		// ImageExists reports whether an image is present locally.
		ImageExists(ctx context.Context, image string) (bool, error)
		// ImageLabel returns the value of a label on a local image.
		// The boolean is false when the image or the label is missing.
		ImageLabel(ctx context.Context, image, key string) (string, bool, error)
		// RemoveImage removes an image reference.
		RemoveImage(ctx context.Context, image string, force bool) error

		// Run runs a container in the foreground until it exits.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
	}

	// EngineType identifies the container engine type.
	EngineType string

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the Dockerfile path, relative to ContextDir unless absolute.
		Dockerfile string
		// Tag is the image tag.
		Tag string
		// Labels are image labels set with --label.
		Labels map[string]string
		// NoCache disables the build cache.
		NoCache bool
		// Stdout receives build output.
		Stdout io.Writer
		// Stderr receives build errors.
		Stderr io.Writer
	}

	// RunOptions contains options for running a container.
	RunOptions struct {
		Image string
		// Entrypoint overrides the image entrypoint when set.
		Entrypoint string
		// Command replaces the image CMD when non-empty.
		Command []string
		// Env is passed with -e in sorted key order.
		Env map[string]string
		// Ports are published with -p.
		Ports []PortMapping
		// Remove removes the container after exit.
		Remove bool
		// Name is the container name.
		Name string
		// Init runs a minimal init as PID 1 to forward signals.
		Init bool

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// RunResult is the outcome of a container run. A non-zero exit code of the
	// container is reported here, not as an error.
	RunResult struct {
		ExitCode types.ExitCode
		// Error holds infrastructure failures (binary missing, daemon down).
		Error error
	}

	// EngineNotAvailableError is returned when no usable engine is found.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable.
func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// String returns the engine type name.
func (t EngineType) String() string { return string(t) }

// ParseEngineType converts a configuration or flag value to an EngineType.
func ParseEngineType(s string) (EngineType, error) {
	switch t := EngineType(strings.ToLower(strings.TrimSpace(s))); t {
	case EngineTypeDocker, EngineTypePodman:
		return t, nil
	default:
		return "", fmt.Errorf("unknown container engine %q (valid: docker, podman)", s)
	}
}

// Validate checks the fields the engine CLI requires.
func (o BuildOptions) Validate() error {
	var errs []error
	if strings.TrimSpace(o.ContextDir) == "" {
		errs = append(errs, errors.New("context directory must be set"))
	}
	if strings.TrimSpace(o.Tag) == "" {
		errs = append(errs, errors.New("tag must be set"))
	}
	for k := range o.Labels {
		if k == "" || strings.ContainsAny(k, "= \t\n") {
			errs = append(errs, fmt.Errorf("label key %q is invalid", k))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidBuildOptions, errors.Join(errs...))
	}
	return nil
}

// Validate checks the fields the engine CLI requires.
func (o RunOptions) Validate() error {
	var errs []error
	if strings.TrimSpace(o.Image) == "" {
		errs = append(errs, errors.New("image must be set"))
	}
	for _, p := range o.Ports {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRunOptions, errors.Join(errs...))
	}
	return nil
}

// engineConstructors builds engines in fallback order per preferred type.
var engineConstructors = map[EngineType][]func() Engine{
	EngineTypeDocker: {newDocker, newPodman},
	EngineTypePodman: {newPodman, newDocker},
}

func newDocker() Engine { return NewDockerEngine() }
func newPodman() Engine { return NewPodmanEngine() }

// NewEngine returns the first available engine, trying the preferred type
// before the other one.
func NewEngine(preferredType EngineType) (Engine, error) {
	candidates, ok := engineConstructors[preferredType]
	if !ok {
		return nil, fmt.Errorf("unknown container engine type: %s", preferredType)
	}
	return firstAvailable(preferredType.String(), candidates)
}

// AutoDetectEngine returns the first available engine, trying Docker first.
func AutoDetectEngine() (Engine, error) {
	return firstAvailable("any", engineConstructors[EngineTypeDocker])
}

func firstAvailable(wanted string, candidates []func() Engine) (Engine, error) {
	names := make([]string, 0, len(candidates))
	for _, newEngine := range candidates {
		engine := newEngine()
		if engine.Available() {
			return engine, nil
		}
		names = append(names, engine.Name())
	}
	return nil, &EngineNotAvailableError{
		Engine: wanted,
		Reason: "none of " + strings.Join(names, ", ") + " is installed with a responding daemon or service",
	}
}
