package feed

import (
	"testing"
	"time"

	"stbl2/internal/model"
)

func mkPage(urlPath string, tags []string, published *time.Time) model.Page {
	return model.Page{
		UrlPath: urlPath,
		Header: model.Header{
			IsPublished: true,
			Tags:        tags,
			Published:   published,
		},
	}
}

func dateAt(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestBlogFeedOrderingDescByDateThenAscByKey(t *testing.T) {
	content := model.SiteContent{
		Pages: []model.Page{
			mkPage("b", nil, dateAt("2024-01-01")),
			mkPage("a", nil, dateAt("2024-01-01")),
			mkPage("c", nil, dateAt("2024-02-01")),
		},
	}
	items := CollectBlogFeed(content, [32]byte{})
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	keys := []string{items[0].LogicalKey, items[1].LogicalKey, items[2].LogicalKey}
	want := []string{"c", "a", "b"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("order = %v, want %v", keys, want)
		}
	}
}

func TestIsBlogIndexExcludedRules(t *testing.T) {
	unpublished := mkPage("x", nil, nil)
	unpublished.Header.IsPublished = false
	if !IsBlogIndexExcluded(unpublished, [32]byte{}) {
		t.Fatalf("unpublished page must be excluded")
	}

	info := mkPage("y", nil, nil)
	info.Header.ContentType = "info"
	if !IsBlogIndexExcluded(info, [32]byte{}) {
		t.Fatalf("info content_type must be excluded")
	}

	idx := mkPage("index", nil, nil)
	if !IsBlogIndexExcluded(idx, [32]byte{}) {
		t.Fatalf("logical key 'index' must be excluded")
	}

	normal := mkPage("normal-page", nil, nil)
	if IsBlogIndexExcluded(normal, [32]byte{}) {
		t.Fatalf("ordinary published page should not be excluded")
	}
}

func TestTagMapCasePreservingFirstOccurrence(t *testing.T) {
	content := model.SiteContent{
		Pages: []model.Page{
			mkPage("a", []string{"Go"}, dateAt("2024-01-01")),
			mkPage("b", []string{"go"}, dateAt("2024-01-02")),
		},
	}
	tags, diags := TagMap(content)
	if _, ok := tags["Go"]; !ok {
		t.Fatalf("expected canonical key 'Go' (first occurrence), got keys %v", keysOf(tags))
	}
	if len(tags["Go"]) != 2 {
		t.Fatalf("expected both pages under the canonical tag, got %d", len(tags["Go"]))
	}
	if len(diags) != 1 {
		t.Fatalf("expected one collision diagnostic, got %d", len(diags))
	}
}

func keysOf(m map[string][]model.Page) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestPaginateRanges(t *testing.T) {
	ranges := Paginate(7, 3, "index")
	if len(ranges) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(ranges))
	}
	if ranges[0].LogicalKey != "index" {
		t.Fatalf("page 1 should map to source logical key, got %q", ranges[0].LogicalKey)
	}
	if ranges[1].LogicalKey != "index/page/2" {
		t.Fatalf("page 2 logical key = %q", ranges[1].LogicalKey)
	}
	if ranges[0].NextKey != ranges[1].LogicalKey || ranges[1].PrevKey != ranges[0].LogicalKey {
		t.Fatalf("prev/next links incorrect: %+v %+v", ranges[0], ranges[1])
	}
	if ranges[2].End != 7 || ranges[2].Start != 6 {
		t.Fatalf("last range bounds = %+v", ranges[2])
	}
}
