// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/browserbox/browserbox/internal/builder"
	"github.com/browserbox/browserbox/internal/config"
	"github.com/browserbox/browserbox/internal/container"
	"github.com/browserbox/browserbox/pkg/types"
)

// completeProbe is what the verification probe prints for a good image.
const completeProbe = "apt-lists=empty\nengine=/usr/bin/chromium\ndriver=/usr/bin/chromedriver\nport=10000\n"

type (
	// staticConfig is a config.Provider returning a fixed configuration.
	staticConfig struct {
		cfg *config.Config
	}

	// fakeEngine is an in-memory container.Engine.
	fakeEngine struct {
		mu        sync.Mutex
		labels    map[string]string
		builds    []container.BuildOptions
		runs      []container.RunOptions
		runOutput string
		runExit   types.ExitCode
	}
)

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	cfg := *s.cfg
	return &cfg, nil
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{labels: make(map[string]string), runOutput: completeProbe}
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Available() bool { return true }

func (f *fakeEngine) Version(context.Context) (string, error) { return "1.0", nil }

func (f *fakeEngine) Build(_ context.Context, opts container.BuildOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, opts)
	f.labels[opts.Tag] = opts.Labels[builder.DigestLabel]
	return nil
}

func (f *fakeEngine) Tag(_ context.Context, source, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels[target] = f.labels[source]
	return nil
}

func (f *fakeEngine) ImageExists(_ context.Context, image string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.labels[image]
	return ok, nil
}

func (f *fakeEngine) ImageLabel(_ context.Context, image, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.labels[image]
	if key != builder.DigestLabel {
		return "", false, nil
	}
	return v, ok, nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, image string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.labels, image)
	return nil
}

func (f *fakeEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, opts)
	if opts.Stdout != nil {
		_, _ = io.WriteString(opts.Stdout, f.runOutput)
	}
	return &container.RunResult{ExitCode: f.runExit}, nil
}

// testApp returns an App using engine for every engine request and
// recording the requested engine kinds.
func testApp(engine container.Engine, requested *[]config.ContainerEngine) *App {
	return NewApp(Dependencies{
		Config: staticConfig{cfg: config.DefaultConfig()},
		Engines: func(kind config.ContainerEngine) (container.Engine, error) {
			if requested != nil {
				*requested = append(*requested, kind)
			}
			return engine, nil
		},
	})
}

// execute runs the command tree with args and returns its output.
func execute(t *testing.T, app *App, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return executeContext(context.Background(), t, app, args...)
}

func executeContext(ctx context.Context, t *testing.T, app *App, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	root := NewRootCommand(app)
	var out, errOut lockedBuffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// lockedBuffer is written by the launcher's output goroutines and its logger.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
