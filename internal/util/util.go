// Package util holds the engine's ambient filesystem helpers: path
// normalization, traversal-safe relative paths, and writing a file
// through an afero.Fs with its parent directory created first.
package util

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
)

// NormalizePath applies NFC Unicode normalization and forward slashes
// so paths compare equal across platforms and filesystems.
func NormalizePath(path string) string {
	path = norm.NFC.String(path)
	path = strings.ReplaceAll(path, "\\", "/")
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		if len(path) >= 2 && path[1] == ':' {
			path = strings.ToUpper(path[:1]) + path[1:]
		}
	}
	return path
}

// SafeRel returns target's path relative to base, forward-slashed, and
// rejects any result that would escape base via "..".
func SafeRel(base, target string) (string, error) {
	base = filepath.FromSlash(NormalizePath(base))
	target = filepath.FromSlash(NormalizePath(target))
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "..\\") {
		return "", fmt.Errorf("path traversal detected: %q escapes %q", target, base)
	}
	return filepath.ToSlash(rel), nil
}

// WriteFile ensures path's parent directory exists under fs, then
// writes data to it. The executor writes rendered HTML, feeds, the
// vars stylesheet, copied assets and resized images through it;
// original media copies and video outputs are written by the media
// package directly.
func WriteFile(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("util: create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("util: write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path names a regular file under fs.
func Exists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
