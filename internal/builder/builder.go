// SPDX-License-Identifier: MPL-2.0

package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/moby/patternmatcher"

	"github.com/browserbox/browserbox/internal/container"
	"github.com/browserbox/browserbox/internal/issue"
	"github.com/browserbox/browserbox/internal/recipe"
)

const (
	// DigestLabel carries the content digest of the build inputs on the image.
	DigestLabel = "io.browserbox.digest"

	// DefaultTag is the image tag used when none is configured.
	DefaultTag = "browserbox-app:latest"

	// GeneratedDockerfile is the name of the generated Dockerfile inside the
	// staging context.
	GeneratedDockerfile = "Dockerfile.browserbox"

	stagingSourceDir    = "src"
	stagingLauncherPath = ".browserbox/browserbox"
)

var (
	// ErrSourceTreeMissing is returned when the build context is not a directory.
	ErrSourceTreeMissing = errors.New("application source tree missing")
	// ErrManifestMissing is returned when the dependency manifest is absent
	// from the build context root.
	ErrManifestMissing = errors.New("dependency manifest missing")
	// ErrLauncherMissing is returned when the recipe embeds the launcher but
	// no launcher binary was supplied.
	ErrLauncherMissing = errors.New("launcher binary missing")
)

type (
	// Builder executes recipes against a container engine.
	Builder struct {
		engine     container.Engine
		logger     *log.Logger
		stagingDir string
	}

	// Option configures a Builder.
	Option func(*Builder)

	// Request describes one image build.
	Request struct {
		// Recipe to build. Nil means recipe.Default().
		Recipe *recipe.Recipe
		// ContextDir is the application source tree.
		ContextDir string
		// Tag is the target image tag. Empty means DefaultTag.
		Tag string
		// NoCache disables the engine's layer cache.
		NoCache bool
		// Force rebuilds even when the target already carries the same digest.
		Force bool
		// Verify runs the verification probe on the resulting image.
		Verify bool
		// LauncherBinary is the host path of the browserbox binary copied into
		// the image when the recipe embeds the launcher. Empty means os.Executable().
		LauncherBinary string
		// Output receives engine build output. Nil means os.Stderr.
		Output io.Writer
	}

	// Result is the outcome of a successful build.
	Result struct {
		Tag    string
		Digest string
		// Cached is true when the target image was already up to date.
		Cached bool
		// Verification is set when Request.Verify was set.
		Verification *Verification
	}
)

// WithLogger sets the builder logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithStagingDir sets the parent directory for temporary build contexts.
func WithStagingDir(dir string) Option {
	return func(b *Builder) {
		b.stagingDir = dir
	}
}

// New creates a Builder using engine.
func New(engine container.Engine, opts ...Option) *Builder {
	b := &Builder{
		engine: engine,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "builder"}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the recipe steps against the engine and tags the result.
//
// The image is built under a staging tag and only promoted to the target
// tag once every step succeeded, so a failed build never leaves an image
// under the target tag. Nothing is retried.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	r := req.Recipe
	if r == nil {
		r = recipe.Default()
	}
	tag := req.Tag
	if tag == "" {
		tag = DefaultTag
	}

	if err := r.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate recipe").
			WithIssue(issue.RecipeInvalidId).
			WithSuggestion("Run 'browserbox recipe show' to inspect the effective recipe").
			Wrap(err).
			BuildError()
	}

	if err := preflight(req.ContextDir, r.Manifest); err != nil {
		return nil, err
	}

	launcherBinary := ""
	if r.Launch.EmbedLauncher {
		var err error
		if launcherBinary, err = resolveLauncher(req.LauncherBinary); err != nil {
			return nil, err
		}
	}

	pm, err := LoadExcludes(req.ContextDir)
	if err != nil {
		return nil, err
	}

	layout := stagingLayout(r)
	dockerfile := r.DockerfileFor(layout)

	digest, err := calculateDigest(dockerfile, req.ContextDir, r.Manifest, launcherBinary, pm)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate build digest: %w", err)
	}

	result := &Result{Tag: tag, Digest: digest}

	if !req.Force && b.upToDate(ctx, tag, digest) {
		b.logger.Info("Image up to date", "tag", tag, "digest", shortDigest(digest))
		result.Cached = true
	} else {
		if err := b.buildAndPromote(ctx, req, tag, digest, dockerfile, launcherBinary, pm); err != nil {
			return nil, err
		}
	}

	if req.Verify {
		v, err := b.Verify(ctx, tag, r)
		if err != nil {
			return nil, err
		}
		result.Verification = v
	}

	return result, nil
}

func (b *Builder) buildAndPromote(ctx context.Context, req Request, tag, digest, dockerfile, launcherBinary string, pm *patternmatcher.PatternMatcher) error {
	buildCtx, cleanup, err := b.prepareBuildContext(req.ContextDir, dockerfile, launcherBinary, pm)
	if err != nil {
		return err
	}
	defer cleanup()

	out := req.Output
	if out == nil {
		out = os.Stderr
	}

	staging := StagingTag(tag, digest)
	b.logger.Info("Building image", "tag", tag, "staging", staging, "engine", b.engine.Name())

	buildOpts := container.BuildOptions{
		ContextDir: buildCtx,
		Dockerfile: GeneratedDockerfile,
		Tag:        staging,
		Labels:     map[string]string{DigestLabel: digest},
		NoCache:    req.NoCache,
		Stdout:     out,
		Stderr:     out,
	}

	if err := b.engine.Build(ctx, buildOpts); err != nil {
		b.discard(staging)
		return issue.NewErrorContext().
			WithOperation("build image").
			WithResource(tag).
			WithIssue(issue.ImageBuildFailedId).
			WithSuggestion("No image was tagged " + tag + "; fix the failing step and build again").
			Wrap(err).
			BuildError()
	}

	if err := b.engine.Tag(ctx, staging, tag); err != nil {
		b.discard(staging)
		return fmt.Errorf("failed to tag %s as %s: %w", staging, tag, err)
	}

	if err := b.engine.RemoveImage(ctx, staging, false); err != nil {
		b.logger.Warn("Failed to remove staging tag", "tag", staging, "error", err)
	}

	b.logger.Info("Image built", "tag", tag, "digest", shortDigest(digest))
	return nil
}

// discard removes a staging tag after a failure. It runs on a fresh
// context since the build context may be the one that was cancelled.
func (b *Builder) discard(staging string) {
	if err := b.engine.RemoveImage(context.Background(), staging, true); err != nil {
		b.logger.Debug("Staging image not removed", "tag", staging, "error", err)
	}
}

func (b *Builder) upToDate(ctx context.Context, tag, digest string) bool {
	current, ok, err := b.engine.ImageLabel(ctx, tag, DigestLabel)
	if err != nil {
		b.logger.Debug("Digest lookup failed, rebuilding", "tag", tag, "error", err)
		return false
	}
	return ok && current == digest
}

// prepareBuildContext creates a temporary directory laid out as
//
//	Dockerfile.browserbox
//	src/                     filtered application source tree
//	.browserbox/browserbox   launcher binary, when embedded
func (b *Builder) prepareBuildContext(srcDir, dockerfile, launcherBinary string, pm *patternmatcher.PatternMatcher) (buildContextDir string, cleanup func(), err error) {
	parent := b.stagingDir
	if parent == "" {
		parent = stagingParent()
	}
	if mkdirErr := os.MkdirAll(parent, 0o755); mkdirErr != nil {
		return "", nil, fmt.Errorf("failed to create build context parent directory: %w", mkdirErr)
	}

	tmpDir, err := os.MkdirTemp(parent, "ctx-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cleanup = func() {
		_ = os.RemoveAll(tmpDir) // Cleanup temp dir; error non-critical
	}

	if err := CopyTree(srcDir, filepath.Join(tmpDir, stagingSourceDir), pm); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to copy source tree: %w", err)
	}

	if launcherBinary != "" {
		dst := filepath.Join(tmpDir, filepath.FromSlash(stagingLauncherPath))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("failed to create launcher directory: %w", err)
		}
		if err := CopyFile(launcherBinary, dst); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("failed to copy launcher binary: %w", err)
		}
		_ = os.Chmod(dst, 0o755) // Best-effort; the COPY keeps the source mode
	}

	if err := os.WriteFile(filepath.Join(tmpDir, GeneratedDockerfile), []byte(dockerfile), 0o644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	return tmpDir, cleanup, nil
}

// stagingParent picks where temporary build contexts live.
//
// Docker installed via Snap cannot read /tmp or hidden directories in
// $HOME, so a visible directory in $HOME is preferred.
func stagingParent() string {
	if home, err := os.UserHomeDir(); err == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			return filepath.Join(home, "browserbox-build")
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, ".browserbox-build")
	}
	return filepath.Join(os.TempDir(), "browserbox-build")
}

// Dockerfile renders the Dockerfile Build generates for r.
func Dockerfile(r *recipe.Recipe) string {
	return r.DockerfileFor(stagingLayout(r))
}

func stagingLayout(r *recipe.Recipe) recipe.Layout {
	layout := recipe.Layout{SourceDir: stagingSourceDir}
	if r.Launch.EmbedLauncher {
		layout.LauncherBinary = stagingLauncherPath
	}
	return layout
}

func preflight(contextDir, manifest string) error {
	info, err := os.Stat(contextDir)
	if err != nil || !info.IsDir() {
		cause := fmt.Errorf("%w: %s", ErrSourceTreeMissing, contextDir)
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrSourceTreeMissing, err)
		}
		return issue.NewErrorContext().
			WithOperation("read application source tree").
			WithResource(contextDir).
			WithIssue(issue.SourceTreeMissingId).
			WithSuggestion("Pass the application directory: browserbox build <dir>").
			Wrap(cause).
			BuildError()
	}

	manifestPath := filepath.Join(contextDir, filepath.FromSlash(manifest))
	info, err = os.Stat(manifestPath)
	if err != nil || !info.Mode().IsRegular() {
		return issue.NewErrorContext().
			WithOperation("read dependency manifest").
			WithResource(manifestPath).
			WithIssue(issue.ManifestMissingId).
			WithSuggestion("Create " + manifest + " at the root of the build context").
			Wrap(fmt.Errorf("%w: %s", ErrManifestMissing, manifest)).
			BuildError()
	}

	return nil
}

func resolveLauncher(path string) (string, error) {
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrLauncherMissing, err)
		}
		path = exe
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLauncherMissing, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrLauncherMissing, path)
	}
	return path, nil
}

// calculateDigest hashes every input that influences the image content.
func calculateDigest(dockerfile, contextDir, manifest, launcherBinary string, pm *patternmatcher.PatternMatcher) (string, error) {
	h := sha256.New()

	h.Write([]byte("dockerfile:" + dockerfile + "\n"))

	manifestHash, err := CalculateFileHash(filepath.Join(contextDir, filepath.FromSlash(manifest)))
	if err != nil {
		return "", fmt.Errorf("failed to hash manifest: %w", err)
	}
	h.Write([]byte("manifest:" + manifestHash + "\n"))

	treeHash, err := CalculateTreeHash(contextDir, pm)
	if err != nil {
		return "", fmt.Errorf("failed to hash source tree: %w", err)
	}
	h.Write([]byte("source:" + treeHash + "\n"))

	if launcherBinary != "" {
		binaryHash, err := CalculateFileHash(launcherBinary)
		if err != nil {
			return "", fmt.Errorf("failed to hash launcher binary: %w", err)
		}
		h.Write([]byte("launcher:" + binaryHash + "\n"))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// StagingTag returns the temporary tag a build of digest is built under
// before promotion to tag: same repository, tag "staging-<digest12>".
func StagingTag(tag, digest string) string {
	return Repository(tag) + ":staging-" + shortDigest(digest)
}

// Repository strips the tag and digest from an image reference.
func Repository(ref string) string {
	if i := strings.Index(ref, "@"); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.LastIndex(ref, ":"); i > strings.LastIndex(ref, "/") {
		ref = ref[:i]
	}
	return ref
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
