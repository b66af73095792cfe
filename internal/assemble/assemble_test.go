package assemble

import (
	"testing"

	"stbl2/internal/model"
)

func part(n int) *int { return &n }

func doc(path, dir string, kind model.DocKind, partNo *int, body string) model.DiscoveredDoc {
	return model.DiscoveredDoc{
		Kind:      kind,
		SeriesDir: dir,
		Parsed: model.ParsedDoc{
			Src:          model.SourceDoc{SourcePath: path},
			Header:       model.Header{IsPublished: true, Part: partNo},
			BodyMarkdown: body,
		},
	}
}

func TestSeriesWithIndexAndPartsSorts(t *testing.T) {
	docs := []model.DiscoveredDoc{
		doc("articles/series/index.md", "articles/series", model.DocSeriesIndex, nil, "idx"),
		doc("articles/series/c.md", "articles/series", model.DocSeriesPart, part(3), "c"),
		doc("articles/series/a.md", "articles/series", model.DocSeriesPart, part(1), "a"),
		doc("articles/series/b.md", "articles/series", model.DocSeriesPart, part(2), "b"),
	}
	content, err := Assemble(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v, diagnostics=%v", err, content.Diagnostics)
	}
	if len(content.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(content.Series))
	}
	parts := content.Series[0].Parts
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	for i, want := range []int{1, 2, 3} {
		if parts[i].PartNo != want {
			t.Fatalf("parts[%d].PartNo = %d, want %d", i, parts[i].PartNo, want)
		}
	}
}

func TestSeriesPartMissingPartNoProducesError(t *testing.T) {
	docs := []model.DiscoveredDoc{
		doc("articles/series/index.md", "articles/series", model.DocSeriesIndex, nil, "idx"),
		doc("articles/series/a.md", "articles/series", model.DocSeriesPart, nil, "a"),
	}
	content, err := Assemble(docs)
	if err == nil {
		t.Fatalf("expected assembly error for missing part_no")
	}
	found := false
	for _, d := range content.Diagnostics {
		if d.Level == model.Error && d.SourcePath == "articles/series/a.md" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected error diagnostic naming articles/series/a.md, got %v", content.Diagnostics)
	}
}

func TestDuplicatePartNumbersProduceError(t *testing.T) {
	docs := []model.DiscoveredDoc{
		doc("articles/series/index.md", "articles/series", model.DocSeriesIndex, nil, "idx"),
		doc("articles/series/a.md", "articles/series", model.DocSeriesPart, part(1), "a"),
		doc("articles/series/b.md", "articles/series", model.DocSeriesPart, part(1), "b"),
	}
	content, err := Assemble(docs)
	if err == nil {
		t.Fatalf("expected assembly error for duplicate part_no")
	}
	if len(content.Series) != 0 {
		t.Fatalf("no series should be materialized when assembly fails")
	}
	var msg string
	for _, d := range content.Diagnostics {
		if d.Level == model.Error {
			msg = d.Message
		}
	}
	if msg == "" {
		t.Fatalf("expected a diagnostic naming the duplicate part_no")
	}
}

func TestStandalonePagesCollected(t *testing.T) {
	docs := []model.DiscoveredDoc{
		doc("articles/page1.md", "", model.DocPage, nil, "one"),
		doc("articles/page2.md", "", model.DocPage, nil, "two"),
	}
	content, err := Assemble(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(content.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(content.Pages))
	}
}

func TestPartsWithNoIndexFallBackToPlainPages(t *testing.T) {
	docs := []model.DiscoveredDoc{
		doc("articles/orphan/a.md", "articles/orphan", model.DocSeriesPart, part(1), "a"),
	}
	content, err := Assemble(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(content.Series) != 0 {
		t.Fatalf("expected no series without an index")
	}
	if len(content.Pages) != 1 {
		t.Fatalf("expected the orphaned part to fall back to a plain page")
	}
}

func TestContentHashChangesWithBody(t *testing.T) {
	h1 := ContentHash(model.Header{Title: "x"}, "body one")
	h2 := ContentHash(model.Header{Title: "x"}, "body two")
	if h1 == h2 {
		t.Fatalf("content hash should change when body changes")
	}
}
