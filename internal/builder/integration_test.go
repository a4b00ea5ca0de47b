// SPDX-License-Identifier: MPL-2.0

package builder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/browserbox/browserbox/internal/container"
	"github.com/browserbox/browserbox/internal/recipe"
	"github.com/browserbox/browserbox/internal/testutil"
)

// The integration app is a bare WSGI callable so the image only needs gunicorn.
const integrationApp = `def app(environ, start_response):
    start_response("200 OK", [("Content-Type", "text/plain")])
    return [b"ok"]
`

// checkTestcontainersAvailable safely checks if testcontainers can be used.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestBuild_Integration builds a real image and checks the launch behavior
// on the default port and on an overridden PORT. Requires Docker or Podman
// and network access to the base image and package mirrors.
func TestBuild_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	engine, err := container.AutoDetectEngine()
	if err != nil {
		t.Skipf("skipping image integration tests: no container engine available: %v", err)
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping image integration tests: testcontainers provider not available")
	}

	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	defer func() { <-sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	dir := writeApp(t, map[string]string{
		"requirements.txt": "gunicorn\n",
		"app.py":           integrationApp,
	})

	tag := fmt.Sprintf("browserbox-it:%d", time.Now().UnixNano())
	b := New(engine, WithLogger(log.New(io.Discard)), WithStagingDir(t.TempDir()))
	res, err := b.Build(ctx, Request{ContextDir: dir, Tag: tag, Verify: true, Output: io.Discard})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { _ = engine.RemoveImage(context.Background(), tag, true) })

	if v := res.Verification; !v.OK() {
		t.Errorf("verification failures: %v", v.Failures)
	}

	t.Run("DefaultPort", func(t *testing.T) {
		assertServes(ctx, t, tag, "10000", nil)
	})
	t.Run("PortOverride", func(t *testing.T) {
		assertServes(ctx, t, tag, "8080", map[string]string{recipe.EnvPort: "8080"})
	})
}

func assertServes(ctx context.Context, t *testing.T, image, port string, env map[string]string) {
	t.Helper()

	exposed := nat.Port(port + "/tcp")
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			Env:          env,
			ExposedPorts: []string{string(exposed)},
			WaitingFor:   wait.ForListeningPort(exposed).WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.PortEndpoint(ctx, exposed, "http")
	if err != nil {
		t.Fatalf("PortEndpoint() error = %v", err)
	}

	resp, err := http.Get(endpoint)
	if err != nil {
		t.Fatalf("GET %s: %v", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("GET %s = %d %q, want 200 \"ok\"", endpoint, resp.StatusCode, body)
	}
}
