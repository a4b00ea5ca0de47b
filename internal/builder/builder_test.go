// SPDX-License-Identifier: MPL-2.0

package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/browserbox/browserbox/internal/issue"
	"github.com/browserbox/browserbox/internal/recipe"
)

func TestBuild_Success(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	b := newTestBuilder(t, engine)
	dir := writeApp(t, nil)

	res, err := b.Build(context.Background(), Request{ContextDir: dir, Tag: "myapp:1.0"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Cached {
		t.Error("first build should not be cached")
	}
	if res.Tag != "myapp:1.0" {
		t.Errorf("Tag = %q, want myapp:1.0", res.Tag)
	}
	if len(res.Digest) != 64 {
		t.Errorf("Digest = %q, want a sha256 hex string", res.Digest)
	}

	staging := StagingTag("myapp:1.0", res.Digest)
	wantCalls := []string{
		"build " + staging,
		"tag " + staging + " myapp:1.0",
		"rmi " + staging,
	}
	if got := engine.Calls(); !slices.Equal(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}

	tags := engine.Tags()
	if !tags["myapp:1.0"] || tags[staging] {
		t.Errorf("images = %v, want only the target tag", tags)
	}

	if engine.lastBuild.Labels[DigestLabel] != res.Digest {
		t.Errorf("digest label = %q, want %q", engine.lastBuild.Labels[DigestLabel], res.Digest)
	}
	if engine.lastBuild.Dockerfile != GeneratedDockerfile {
		t.Errorf("Dockerfile = %q, want %q", engine.lastBuild.Dockerfile, GeneratedDockerfile)
	}
	if !strings.Contains(engine.lastDockerfile, "COPY src/requirements.txt ./requirements.txt") {
		t.Errorf("staged Dockerfile does not copy the manifest from src/:\n%s", engine.lastDockerfile)
	}
	if got := Dockerfile(recipe.Default()); got != engine.lastDockerfile {
		t.Errorf("Dockerfile() differs from the staged file:\n%s", got)
	}

	wantFiles := []string{GeneratedDockerfile, "src/app.py", "src/requirements.txt"}
	if !slices.Equal(engine.lastFiles, wantFiles) {
		t.Errorf("staged files = %v, want %v", engine.lastFiles, wantFiles)
	}
}

func TestBuild_DefaultTag(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	b := newTestBuilder(t, engine)

	res, err := b.Build(context.Background(), Request{ContextDir: writeApp(t, nil)})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Tag != DefaultTag {
		t.Errorf("Tag = %q, want %q", res.Tag, DefaultTag)
	}
}

func TestBuild_Cached(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	b := newTestBuilder(t, engine)
	dir := writeApp(t, nil)
	req := Request{ContextDir: dir, Tag: "myapp:latest"}

	first, err := b.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("first Build() error = %v", err)
	}

	second, err := b.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if !second.Cached {
		t.Error("second build with identical inputs should be cached")
	}
	if second.Digest != first.Digest {
		t.Errorf("digest changed: %s != %s", second.Digest, first.Digest)
	}
	if n := len(engine.Calls()); n != 3 {
		t.Errorf("engine calls = %d, want 3 (no second build)", n)
	}

	t.Run("force rebuilds", func(t *testing.T) {
		req := req
		req.Force = true
		res, err := b.Build(context.Background(), req)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if res.Cached {
			t.Error("forced build should not be cached")
		}
	})

	t.Run("source change rebuilds", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		path := filepath.Join(dir, "app.py")
		if err := os.WriteFile(path, []byte("app = None  # changed\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, later, later); err != nil {
			t.Fatal(err)
		}
		res, err := b.Build(context.Background(), req)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if res.Cached {
			t.Error("build after a source change should not be cached")
		}
		if res.Digest == first.Digest {
			t.Error("digest should change with the source tree")
		}
	})
}

func TestBuild_RecipeChangesDigest(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	b := newTestBuilder(t, engine)
	dir := writeApp(t, nil)

	first, err := b.Build(context.Background(), Request{ContextDir: dir})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	r := recipe.Default()
	r.SetEnv(recipe.EnvPort, "8080")
	second, err := b.Build(context.Background(), Request{ContextDir: dir, Recipe: r})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if second.Cached || second.Digest == first.Digest {
		t.Error("a recipe change must produce a new digest and a rebuild")
	}
}

func TestBuild_FailureLeavesNoImage(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.buildErr = errBuildFailed
	b := newTestBuilder(t, engine)

	r := recipe.Default()
	r.SystemPackages = append(r.SystemPackages, "no-such-package")

	_, err := b.Build(context.Background(), Request{ContextDir: writeApp(t, nil), Tag: "myapp:1.0", Recipe: r})
	if err == nil {
		t.Fatal("Build() should fail when the engine build fails")
	}
	if !errors.Is(err, errBuildFailed) {
		t.Errorf("error should wrap the engine error, got %v", err)
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error should be an ActionableError, got %T", err)
	}
	if ae.Issue != issue.ImageBuildFailedId {
		t.Errorf("Issue = %v, want ImageBuildFailedId", ae.Issue)
	}

	if tags := engine.Tags(); len(tags) != 0 {
		t.Errorf("images after failed build = %v, want none", tags)
	}
	for _, call := range engine.Calls() {
		if strings.HasPrefix(call, "tag ") {
			t.Errorf("failed build must not be promoted, got %q", call)
		}
	}
	calls := engine.Calls()
	if last := calls[len(calls)-1]; !strings.HasPrefix(last, "rmi ") {
		t.Errorf("last call = %q, want staging removal", last)
	}
}

func TestBuild_TagFailure(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.tagErr = errors.New("disk full")
	b := newTestBuilder(t, engine)

	if _, err := b.Build(context.Background(), Request{ContextDir: writeApp(t, nil), Tag: "myapp:1.0"}); err == nil {
		t.Fatal("Build() should fail when promotion fails")
	}
	if tags := engine.Tags(); len(tags) != 0 {
		t.Errorf("images after failed promotion = %v, want none", tags)
	}
}

func TestBuild_Preflight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		recipe  func() *recipe.Recipe
		wantErr error
		wantId  issue.Id
	}{
		{
			name:    "missing context dir",
			setup:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
			wantErr: ErrSourceTreeMissing,
			wantId:  issue.SourceTreeMissingId,
		},
		{
			name: "context is a file",
			setup: func(t *testing.T) string {
				dir := writeApp(t, nil)
				return filepath.Join(dir, "app.py")
			},
			wantErr: ErrSourceTreeMissing,
			wantId:  issue.SourceTreeMissingId,
		},
		{
			name:    "missing manifest",
			setup:   func(t *testing.T) string { return writeApp(t, map[string]string{"app.py": "app = None\n"}) },
			wantErr: ErrManifestMissing,
			wantId:  issue.ManifestMissingId,
		},
		{
			name: "manifest is a directory",
			setup: func(t *testing.T) string {
				return writeApp(t, map[string]string{"requirements.txt/keep": "", "app.py": ""})
			},
			wantErr: ErrManifestMissing,
			wantId:  issue.ManifestMissingId,
		},
		{
			name:  "invalid recipe",
			setup: func(t *testing.T) string { return writeApp(t, nil) },
			recipe: func() *recipe.Recipe {
				r := recipe.Default()
				r.BaseImage = "python"
				return r
			},
			wantErr: recipe.ErrInvalidRecipe,
			wantId:  issue.RecipeInvalidId,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := newFakeEngine()
			b := newTestBuilder(t, engine)
			req := Request{ContextDir: tt.setup(t)}
			if tt.recipe != nil {
				req.Recipe = tt.recipe()
			}

			_, err := b.Build(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Issue != tt.wantId {
				t.Errorf("error should carry issue %v, got %#v", tt.wantId, ae)
			}
			if calls := engine.Calls(); len(calls) != 0 {
				t.Errorf("preflight failure must not reach the engine, got %v", calls)
			}
		})
	}
}

func TestBuild_EmbedLauncher(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	b := newTestBuilder(t, engine)
	dir := writeApp(t, nil)

	bin := filepath.Join(t.TempDir(), "browserbox")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := recipe.Default()
	r.Launch.EmbedLauncher = true

	if _, err := b.Build(context.Background(), Request{ContextDir: dir, Recipe: r, LauncherBinary: bin}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !slices.Contains(engine.lastFiles, ".browserbox/browserbox") {
		t.Errorf("staged files = %v, want the launcher binary", engine.lastFiles)
	}
	if !strings.Contains(engine.lastDockerfile, "COPY .browserbox/browserbox "+recipe.LauncherPath) {
		t.Errorf("Dockerfile does not install the launcher:\n%s", engine.lastDockerfile)
	}

	t.Run("missing binary", func(t *testing.T) {
		t.Parallel()

		_, err := b.Build(context.Background(), Request{
			ContextDir:     dir,
			Recipe:         r,
			LauncherBinary: filepath.Join(t.TempDir(), "missing"),
		})
		if !errors.Is(err, ErrLauncherMissing) {
			t.Errorf("Build() error = %v, want ErrLauncherMissing", err)
		}
	})
}

func TestBuild_DockerIgnore(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	b := newTestBuilder(t, engine)
	dir := writeApp(t, map[string]string{
		"requirements.txt":     "flask\n",
		"app.py":               "",
		"browserbox.cue":       "",
		".git/HEAD":            "ref: refs/heads/main\n",
		".dockerignore":        "*.log\nvenv/\n!keep.log\n",
		"debug.log":            "",
		"keep.log":             "",
		"venv/lib/site.py":     "",
		"templates/index.html": "",
	})

	if _, err := b.Build(context.Background(), Request{ContextDir: dir}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []string{
		GeneratedDockerfile,
		"src/.dockerignore",
		"src/app.py",
		"src/keep.log",
		"src/requirements.txt",
		"src/templates/index.html",
	}
	if !slices.Equal(engine.lastFiles, want) {
		t.Errorf("staged files = %v, want %v", engine.lastFiles, want)
	}
}

func TestBuild_Verify(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.runOutput = "apt-lists=empty\nengine=/usr/bin/chromium\ndriver=/usr/bin/chromedriver\nport=10000\n"
	b := newTestBuilder(t, engine)

	res, err := b.Build(context.Background(), Request{ContextDir: writeApp(t, nil), Verify: true})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Verification == nil || !res.Verification.OK() {
		t.Errorf("Verification = %+v, want a passing report", res.Verification)
	}
}

func TestStagingTag(t *testing.T) {
	t.Parallel()

	digest := strings.Repeat("ab", 32)
	tests := []struct {
		tag  string
		want string
	}{
		{"myapp", "myapp:staging-abababababab"},
		{"myapp:1.0", "myapp:staging-abababababab"},
		{"registry.local:5000/team/app:v2", "registry.local:5000/team/app:staging-abababababab"},
		{"registry.local:5000/team/app", "registry.local:5000/team/app:staging-abababababab"},
		{"app@sha256:" + digest, "app:staging-abababababab"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()
			if got := StagingTag(tt.tag, digest); got != tt.want {
				t.Errorf("StagingTag(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}
