package scan

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"stbl2/internal/model"
)

func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func TestDocumentsClassifiesStandalonePage(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "articles/about.md", "---\ntitle: About\n---\nHello.")

	docs, err := Documents(fsys, "articles")
	if err != nil {
		t.Fatalf("Documents() error: %v", err)
	}
	if len(docs) != 1 || docs[0].Kind != model.DocPage {
		t.Fatalf("expected one standalone page, got %+v", docs)
	}
	if docs[0].Parsed.Header.Title != "About" {
		t.Fatalf("header not parsed: %+v", docs[0].Parsed.Header)
	}
}

func TestDocumentsClassifiesSeriesIndexAndParts(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "articles/go/_index.md", "title: Learning Go\n\nIntro.")
	writeFile(t, fsys, "articles/go/a.md", "title: Part A\npart: 1\n\nBody A.")
	writeFile(t, fsys, "articles/go/b.md", "title: Part B\npart: 2\n\nBody B.")

	docs, err := Documents(fsys, "articles")
	if err != nil {
		t.Fatalf("Documents() error: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}

	var sawIndex, sawParts int
	for _, d := range docs {
		switch d.Kind {
		case model.DocSeriesIndex:
			sawIndex++
			if d.SeriesDir != "articles/go" {
				t.Fatalf("unexpected series dir %q", d.SeriesDir)
			}
		case model.DocSeriesPart:
			sawParts++
		}
	}
	if sawIndex != 1 || sawParts != 2 {
		t.Fatalf("expected 1 index + 2 parts, got index=%d parts=%d", sawIndex, sawParts)
	}
}

func TestDocumentsOrphanPartWithNoIndexIsStandalonePage(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "articles/loose/a.md", "title: Loose\npart: 1\n\nBody.")

	docs, err := Documents(fsys, "articles")
	if err != nil {
		t.Fatalf("Documents() error: %v", err)
	}
	if len(docs) != 1 || docs[0].Kind != model.DocPage {
		t.Fatalf("expected a standalone page absent a series index, got %+v", docs)
	}
}

func TestMediaInputsResolvesReferencedImage(t *testing.T) {
	dir := t.TempDir()
	imgPath := dir + "/images/banner.png"
	if err := writeRawFile(imgPath, tinyPNG()); err != nil {
		t.Fatalf("writeRawFile: %v", err)
	}

	page := model.Page{
		MediaRefs: []model.MediaRef{{Kind: model.MediaImage, Path: "images/banner.png"}},
	}
	content := model.SiteContent{Pages: []model.Page{page}}

	images, videos, err := MediaInputs(dir, content)
	if err != nil {
		t.Fatalf("MediaInputs() error: %v", err)
	}
	if len(videos.Sources) != 0 {
		t.Fatalf("expected no videos, got %v", videos.Sources)
	}
	if _, ok := images.Sources["images/banner.png"]; !ok {
		t.Fatalf("expected banner.png to be resolved, got %v", images.Sources)
	}
}

func TestStaticAssetsMapsFilesUnderOutPrefix(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "static/css/site.css", "body{}")
	writeFile(t, fsys, "static/favicon.ico", "icon")

	assets, err := StaticAssets(fsys, "static", "assets/static")
	if err != nil {
		t.Fatalf("StaticAssets() error: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d: %v", len(assets), assets)
	}
	a, ok := assets["assets/static/css/site.css"]
	if !ok {
		t.Fatalf("expected assets/static/css/site.css, got %v", assets)
	}
	if a.Source != "static/css/site.css" {
		t.Fatalf("unexpected source: %q", a.Source)
	}
}

func TestStaticAssetsMissingRootReturnsEmpty(t *testing.T) {
	fsys := afero.NewMemMapFs()
	assets, err := StaticAssets(fsys, "static", "assets/static")
	if err != nil {
		t.Fatalf("StaticAssets() error: %v", err)
	}
	if len(assets) != 0 {
		t.Fatalf("expected no assets for missing root, got %v", assets)
	}
}

func writeRawFile(path string, data []byte) error {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(osFs, path, data, 0o644)
}

// tinyPNG returns the smallest valid PNG: a single opaque red pixel.
func tinyPNG() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
		0xde, 0x00, 0x00, 0x00, 0x0c, 0x49, 0x44, 0x41,
		0x54, 0x08, 0xd7, 0x63, 0xf8, 0xcf, 0xc0, 0x00,
		0x00, 0x03, 0x01, 0x01, 0x00, 0x18, 0xdd, 0x8d,
		0xb0, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
		0x44, 0xae, 0x42, 0x60, 0x82,
	}
}
