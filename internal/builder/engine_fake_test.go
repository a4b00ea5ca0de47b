// SPDX-License-Identifier: MPL-2.0

package builder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/browserbox/browserbox/internal/container"
	"github.com/browserbox/browserbox/pkg/types"
)

var errBuildFailed = errors.New("exit status 100: E: Unable to locate package no-such-package")

// fakeEngine is an in-memory container.Engine. Images are tag -> labels.
type fakeEngine struct {
	mu sync.Mutex

	images   map[string]map[string]string
	calls    []string
	buildErr error
	tagErr   error

	// lastBuild records the options and the staged context of the last build.
	lastBuild      container.BuildOptions
	lastDockerfile string
	lastFiles      []string

	runOutput string
	runResult *container.RunResult
	lastRun   container.RunOptions
}

var _ container.Engine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{images: make(map[string]map[string]string)}
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) Name() string                           { return "fake" }
func (f *fakeEngine) Available() bool                        { return true }
func (f *fakeEngine) Version(context.Context) (string, error) { return "1.0", nil }

func (f *fakeEngine) Build(_ context.Context, opts container.BuildOptions) error {
	f.record("build " + opts.Tag)

	// Snapshot the staging context before the builder cleans it up.
	data, err := os.ReadFile(filepath.Join(opts.ContextDir, opts.Dockerfile))
	if err != nil {
		return err
	}
	var files []string
	_ = filepath.WalkDir(opts.ContextDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(opts.ContextDir, path)
		files = append(files, filepath.ToSlash(rel))
		return nil
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastBuild = opts
	f.lastDockerfile = string(data)
	f.lastFiles = files
	if f.buildErr != nil {
		return f.buildErr
	}
	f.images[opts.Tag] = opts.Labels
	return nil
}

func (f *fakeEngine) Tag(_ context.Context, source, target string) error {
	f.record("tag " + source + " " + target)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tagErr != nil {
		return f.tagErr
	}
	labels, ok := f.images[source]
	if !ok {
		return errors.New("no such image: " + source)
	}
	f.images[target] = labels
	return nil
}

func (f *fakeEngine) ImageExists(_ context.Context, image string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.images[image]
	return ok, nil
}

func (f *fakeEngine) ImageLabel(_ context.Context, image, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels, ok := f.images[image]
	if !ok {
		return "", false, nil
	}
	v, ok := labels[key]
	return v, ok, nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, image string, _ bool) error {
	f.record("rmi " + image)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.images[image]; !ok {
		return errors.New("no such image: " + image)
	}
	delete(f.images, image)
	return nil
}

func (f *fakeEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	f.record("run " + opts.Image)
	f.mu.Lock()
	f.lastRun = opts
	out, res := f.runOutput, f.runResult
	f.mu.Unlock()

	if opts.Stdout != nil {
		_, _ = io.WriteString(opts.Stdout, out)
	}
	if res == nil {
		res = &container.RunResult{ExitCode: types.ExitSuccess}
	}
	return res, nil
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) Tags() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	tags := make(map[string]bool, len(f.images))
	for tag := range f.images {
		tags[tag] = true
	}
	return tags
}

func newTestBuilder(t *testing.T, engine container.Engine) *Builder {
	t.Helper()
	return New(engine,
		WithLogger(log.New(io.Discard)),
		WithStagingDir(t.TempDir()),
	)
}

// writeApp creates a minimal application tree and returns its directory.
func writeApp(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if files == nil {
		files = map[string]string{
			"requirements.txt": "flask\ngunicorn\n",
			"app.py":           "from flask import Flask\napp = Flask(__name__)\n",
		}
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
