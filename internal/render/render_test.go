package render

import (
	"strings"
	"testing"

	"stbl2/internal/feed"
	"stbl2/internal/ids"
	"stbl2/internal/model"
)

func testContext() Context {
	return Context{Site: model.SiteMeta{Language: "en"}, BuildDate: "2026-07-30"}
}

func TestRenderPageProducesHTMLWithTitle(t *testing.T) {
	r := New()
	page := model.Page{
		Header:       model.Header{Title: "Hello World"},
		BodyMarkdown: "# Heading\n\nSome *text* with `code`.",
		UrlPath:      "hello",
	}
	out, err := r.RenderPage(testContext(), page, "/hello/")
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if !strings.Contains(out, "Hello World") {
		t.Fatalf("rendered page missing title: %s", out)
	}
	if !strings.Contains(out, "<h1") {
		t.Fatalf("rendered page missing heading markup: %s", out)
	}
}

func TestRenderPageHighlightsCodeBlocks(t *testing.T) {
	r := New()
	page := model.Page{
		Header:       model.Header{Title: "Code"},
		BodyMarkdown: "```go\nfunc main() {}\n```",
	}
	out, err := r.RenderPage(testContext(), page, "/code/")
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if !strings.Contains(out, "chroma") {
		t.Fatalf("expected chroma highlighting classes in output: %s", out)
	}
}

func TestRenderSeriesListsParts(t *testing.T) {
	r := New()
	series := model.Series{
		Index: model.Page{Header: model.Header{Title: "My Series"}, BodyMarkdown: "intro"},
		Parts: []model.SeriesPart{
			{PartNo: 1, Page: model.Page{Header: model.Header{Title: "Part One", IsPublished: true}, UrlPath: "series/1"}},
			{PartNo: 2, Page: model.Page{Header: model.Header{Title: "Part Two", IsPublished: true}, UrlPath: "series/2"}},
		},
	}
	out, err := r.RenderSeries(testContext(), series, "/series/")
	if err != nil {
		t.Fatalf("RenderSeries() error: %v", err)
	}
	if !strings.Contains(out, "Part One") || !strings.Contains(out, "Part Two") {
		t.Fatalf("rendered series missing parts: %s", out)
	}
}

func TestRenderBlogIndexListsItemsAndPagination(t *testing.T) {
	r := New()
	post := model.Page{Header: model.Header{Title: "A Post"}, UrlPath: "a-post"}
	in := BlogIndexInput{
		Title:      "Blog",
		Items:      []feed.Item{{Kind: feed.ItemPost, Post: &post}},
		PageNo:     1,
		TotalPages: 2,
		NextHref:   "/page/2/",
	}
	out, err := r.RenderBlogIndex(testContext(), in, "/")
	if err != nil {
		t.Fatalf("RenderBlogIndex() error: %v", err)
	}
	if !strings.Contains(out, "A Post") {
		t.Fatalf("missing post title: %s", out)
	}
	if !strings.Contains(out, "page 1 of 2") {
		t.Fatalf("missing pagination summary: %s", out)
	}
}

func TestRenderTagIndexListsPages(t *testing.T) {
	r := New()
	pages := []model.Page{
		{Header: model.Header{Title: "Go Page"}, UrlPath: "go-page", Id: ids.HashDoc("a")},
	}
	out, err := r.RenderTagIndex(testContext(), "go", pages, "/tags/go/")
	if err != nil {
		t.Fatalf("RenderTagIndex() error: %v", err)
	}
	if !strings.Contains(out, "Go Page") {
		t.Fatalf("missing page title: %s", out)
	}
}

func TestRenderRedirectPagePointsAtHref(t *testing.T) {
	out := RenderRedirectPage("/foo/")
	if !strings.Contains(out, `url=/foo/`) {
		t.Fatalf("redirect page missing target href: %s", out)
	}
}

func TestRenderVarsCssIsDeterministicAcrossMapOrdering(t *testing.T) {
	a := RenderVarsCss(map[string]string{"accent": "#ff0000", "bg": "#000000"})
	b := RenderVarsCss(map[string]string{"bg": "#000000", "accent": "#ff0000"})
	if string(a) != string(b) {
		t.Fatalf("RenderVarsCss must not depend on map iteration order: %q vs %q", a, b)
	}
	if !strings.Contains(string(a), "--accent:#ff0000;") {
		t.Fatalf("missing expected custom property: %s", a)
	}
}
