package config

import (
	"os"
	"path/filepath"
	"testing"

	"stbl2/internal/model"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Site.UrlStyle != model.UrlPretty {
		t.Fatalf("expected default url style pretty, got %v", cfg.Site.UrlStyle)
	}
	if cfg.Blog.PageSize != 10 {
		t.Fatalf("expected default page size 10, got %d", cfg.Blog.PageSize)
	}
}

func TestLoadOverlaysYaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stbl2.yaml")
	writeFile(t, path, `
site:
  title: Example Site
  urlStyle: html
media:
  images:
    widths: [640, 320]
    formatMode: fast
blog:
  pageSize: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Site.Title != "Example Site" {
		t.Fatalf("title not overlaid: %q", cfg.Site.Title)
	}
	if cfg.Site.UrlStyle != model.UrlHtml {
		t.Fatalf("urlStyle not overlaid: %v", cfg.Site.UrlStyle)
	}
	if len(cfg.Media.Images.Widths) != 2 || cfg.Media.Images.Widths[0] != 320 {
		t.Fatalf("widths not sorted/overlaid: %v", cfg.Media.Images.Widths)
	}
	if cfg.Media.Images.FormatMode != model.FormatModeFast {
		t.Fatalf("formatMode not overlaid")
	}
	if cfg.Blog.PageSize != 5 {
		t.Fatalf("pageSize not overlaid: %d", cfg.Blog.PageSize)
	}
	// Fields absent from the overlay keep their defaults.
	if cfg.Rss.MaxItems != 20 {
		t.Fatalf("expected untouched default for rss.maxItems, got %d", cfg.Rss.MaxItems)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
}
