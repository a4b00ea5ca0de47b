// SPDX-License-Identifier: MPL-2.0

package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"

	"github.com/browserbox/browserbox/internal/recipe"
)

// DockerIgnoreFile is the per-project exclusion file honored when staging
// the source tree.
const DockerIgnoreFile = ".dockerignore"

// builtinExcludes are never copied into the image: the recipe itself and
// version control metadata.
var builtinExcludes = []string{recipe.FileName, ".git"}

// CalculateFileHash calculates SHA256 hash of a file's contents.
func CalculateFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }() // Read-only file; close error non-critical

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// LoadExcludes returns the exclusion matcher for a source tree: the
// patterns of its .dockerignore, if any, followed by the built-in ones.
func LoadExcludes(srcDir string) (*patternmatcher.PatternMatcher, error) {
	var patterns []string

	f, err := os.Open(filepath.Join(srcDir, DockerIgnoreFile))
	switch {
	case err == nil:
		patterns, err = ignorefile.ReadAll(f)
		_ = f.Close() // Read-only file; close error non-critical
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", DockerIgnoreFile, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to open %s: %w", DockerIgnoreFile, err)
	}

	pm, err := patternmatcher.New(append(patterns, builtinExcludes...))
	if err != nil {
		return nil, fmt.Errorf("invalid %s pattern: %w", DockerIgnoreFile, err)
	}
	return pm, nil
}

// walkIncluded calls fn for every regular file under srcDir that the
// matcher does not exclude, with its slash-separated relative path.
// Directories are skipped wholesale when excluded and no negation pattern
// could re-include something below them.
func walkIncluded(srcDir string, pm *patternmatcher.PatternMatcher, fn func(rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		excluded, err := pm.MatchesOrParentMatches(rel)
		if err != nil {
			return fmt.Errorf("failed to match %s: %w", rel, err)
		}
		if excluded {
			if d.IsDir() && !pm.Exclusions() {
				return filepath.SkipDir
			}
			return nil
		}

		return fn(filepath.ToSlash(rel), d)
	})
}

// CalculateTreeHash calculates a hash of the included contents of a source
// tree. It includes file names, sizes, and modification times for efficiency.
func CalculateTreeHash(srcDir string, pm *patternmatcher.PatternMatcher) (string, error) {
	var entries []string
	err := walkIncluded(srcDir, pm, func(rel string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, fmt.Sprintf("%s:%d:%d", rel, info.Size(), info.ModTime().Unix()))
		return nil
	})
	if err != nil {
		return "", err
	}

	// Sort for consistent ordering
	sort.Strings(entries)

	h := sha256.New()
	for _, entry := range entries {
		h.Write([]byte(entry))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// CopyFile copies a file from src to dst.
func CopyFile(src, dst string) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() { _ = srcFile.Close() }() // Read-only file; close error non-critical

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dstFile.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	return nil
}

// CopyTree copies the included part of srcDir into dst. Symlinks are
// recreated as symlinks; other special files are skipped.
func CopyTree(srcDir, dst string, pm *patternmatcher.PatternMatcher) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	return walkIncluded(srcDir, pm, func(rel string, d fs.DirEntry) error {
		srcPath := filepath.Join(srcDir, filepath.FromSlash(rel))
		dstPath := filepath.Join(dst, filepath.FromSlash(rel))

		switch {
		case d.IsDir():
			if err := os.MkdirAll(dstPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", rel, err)
			}
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return fmt.Errorf("failed to read link %s: %w", rel, err)
			}
			if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return fmt.Errorf("failed to copy link %s: %w", rel, err)
			}
		case d.Type().IsRegular():
			if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
				return err
			}
			if err := CopyFile(srcPath, dstPath); err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}
		}
		return nil
	})
}
