package util

import (
	"testing"

	"github.com/spf13/afero"
)

func TestSafeRelRejectsTraversal(t *testing.T) {
	if _, err := SafeRel("/site/out", "/etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestSafeRelAllowsNestedPath(t *testing.T) {
	rel, err := SafeRel("/site/out", "/site/out/tags/go/index.html")
	if err != nil {
		t.Fatalf("SafeRel() error: %v", err)
	}
	if rel != "tags/go/index.html" {
		t.Fatalf("SafeRel() = %q", rel)
	}
}

func TestWriteFileCreatesParentDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := WriteFile(fs, "out/tags/go/index.html", []byte("hi")); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if !Exists(fs, "out/tags/go/index.html") {
		t.Fatalf("expected written file to exist")
	}
}

func TestExistsFalseForMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if Exists(fs, "nope.html") {
		t.Fatalf("expected Exists() to be false for a missing file")
	}
}

func TestNormalizePathConvertsBackslashes(t *testing.T) {
	if got := NormalizePath(`a\b\c`); got != "a/b/c" {
		t.Fatalf("NormalizePath() = %q", got)
	}
}
