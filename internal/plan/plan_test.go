package plan

import (
	"testing"

	"stbl2/internal/ids"
	"stbl2/internal/media"
	"stbl2/internal/model"
)

func testConfig() model.SiteConfig {
	return model.SiteConfig{
		Site:  model.SiteMeta{UrlStyle: model.UrlPretty},
		Theme: model.ThemeConfig{Name: "default", Vars: map[string]string{"accent": "#ff0000"}},
		Media: model.MediaConfig{
			Images: model.ImagesConfig{Widths: []uint32{320, 640}, Quality: 84, FormatMode: model.FormatModeFast},
			Video:  model.VideoConfig{Heights: []uint32{480}, PosterTimeSec: 3},
		},
		Blog: model.BlogConfig{PageSize: 2, Series: model.BlogSeriesConfig{LatestParts: 3}},
		Rss:  model.RssConfig{Enabled: true},
	}
}

func page(urlPath, title string, tags []string, published bool, template string) model.Page {
	hdr := model.Header{Title: title, Tags: tags, IsPublished: published, Template: template}
	return model.Page{
		Id:          ids.HashDoc("articles/" + urlPath + ".md"),
		SourcePath:  "articles/" + urlPath + ".md",
		Header:      hdr,
		UrlPath:     urlPath,
		ContentHash: contentHashFor(title, tags, template),
	}
}

func contentHashFor(title string, tags []string, template string) ids.ContentHash {
	b := ids.NewBuilder("test.content").Str(title).StrSeq(tags).Str(template)
	return ids.ContentHash(b.Finish())
}

func site1() model.SiteContent {
	index := page("index", "Home", nil, true, "BlogIndex")
	page1 := page("page1", "Page One", []string{"go", "rust"}, true, "")
	page2 := page("page2", "Page Two", []string{"go"}, true, "")
	info := page("info", "About", nil, true, "Info")
	excluded := page("excluded", "Hidden", nil, false, "")

	seriesIndex := page("series", "A Series", []string{"rust"}, true, "")
	part1 := page("series/1", "Part One", []string{"rust"}, true, "")
	part2 := page("series/2", "Part Two", []string{"rust"}, true, "")
	part3 := page("series/3", "Part Three", []string{"rust"}, true, "")

	return model.SiteContent{
		Pages: []model.Page{index, page1, page2, info, excluded},
		Series: []model.Series{
			{
				Id:      ids.HashSeries("articles/series"),
				DirPath: "articles/series",
				Index:   seriesIndex,
				Parts: []model.SeriesPart{
					{PartNo: 1, Page: part1},
					{PartNo: 2, Page: part2},
					{PartNo: 3, Page: part3},
				},
			},
		},
	}
}

func TestBuildDeterministic(t *testing.T) {
	content := site1()
	cfg := testConfig()
	p1 := Build(content, cfg, nil, media.ImagePlanInput{}, media.VideoPlanInput{})
	p2 := Build(content, cfg, nil, media.ImagePlanInput{}, media.VideoPlanInput{})

	if len(p1.Tasks) != len(p2.Tasks) || len(p1.Edges) != len(p2.Edges) {
		t.Fatalf("non-deterministic task/edge count")
	}
	for i := range p1.Tasks {
		if p1.Tasks[i].Id != p2.Tasks[i].Id {
			t.Fatalf("task order/id differs at %d", i)
		}
	}
	for i := range p1.Edges {
		if p1.Edges[i] != p2.Edges[i] {
			t.Fatalf("edge order differs at %d", i)
		}
	}
}

func TestBuildTaskIdsUnique(t *testing.T) {
	plan := Build(site1(), testConfig(), nil, media.ImagePlanInput{}, media.VideoPlanInput{})
	seen := make(map[ids.TaskId]bool)
	for _, task := range plan.Tasks {
		if seen[task.Id] {
			t.Fatalf("duplicate task id %v (kind %v)", task.Id, task.Kind)
		}
		seen[task.Id] = true
	}
}

func TestBuildOutputPathsUnique(t *testing.T) {
	plan := Build(site1(), testConfig(), nil, media.ImagePlanInput{}, media.VideoPlanInput{})
	seen := make(map[string]bool)
	for _, task := range plan.Tasks {
		for _, out := range task.Outputs {
			if seen[out.Path] {
				t.Fatalf("output path %q reused by more than one task", out.Path)
			}
			seen[out.Path] = true
		}
	}
}

func TestBuildExcludesUnpublishedPage(t *testing.T) {
	plan := Build(site1(), testConfig(), nil, media.ImagePlanInput{}, media.VideoPlanInput{})
	for _, task := range plan.Tasks {
		if task.Kind == model.KindRenderPage && task.SourcePage == ids.HashDoc("articles/excluded.md") {
			t.Fatalf("unpublished page must not get a RenderPage task")
		}
	}
}

func TestBuildTaskCounts(t *testing.T) {
	plan := Build(site1(), testConfig(), nil, media.ImagePlanInput{}, media.VideoPlanInput{})
	counts := map[model.TaskKind]int{}
	for _, task := range plan.Tasks {
		counts[task.Kind]++
	}
	// page1, page2, info (published, standalone, non-BlogIndex) + 3 series
	// parts; "index" is BlogIndex-templated and rendered by emitBlogIndexes.
	if counts[model.KindRenderPage] != 6 {
		t.Fatalf("RenderPage = %d, want 6", counts[model.KindRenderPage])
	}
	if counts[model.KindRenderSeries] != 1 {
		t.Fatalf("RenderSeries = %d, want 1", counts[model.KindRenderSeries])
	}
	// tags: go, rust.
	if counts[model.KindRenderTagIndex] != 2 {
		t.Fatalf("RenderTagIndex = %d, want 2", counts[model.KindRenderTagIndex])
	}
	if counts[model.KindRenderTagsIndex] != 1 {
		t.Fatalf("RenderTagsIndex = %d, want 1", counts[model.KindRenderTagsIndex])
	}
	if counts[model.KindGenerateRss] != 1 {
		t.Fatalf("GenerateRss = %d, want 1", counts[model.KindGenerateRss])
	}
	if counts[model.KindGenerateSitemap] != 1 {
		t.Fatalf("GenerateSitemap = %d, want 1", counts[model.KindGenerateSitemap])
	}
	// page size 2 over a 3-item feed (page1, page2, the series) -> 2 pages.
	if counts[model.KindRenderBlogIndex] != 2 {
		t.Fatalf("RenderBlogIndex = %d, want 2", counts[model.KindRenderBlogIndex])
	}
}

func TestBuildFingerprintIsolation(t *testing.T) {
	content := site1()
	cfg := testConfig()
	base := Build(content, cfg, nil, media.ImagePlanInput{}, media.VideoPlanInput{})

	mutated := site1()
	for i := range mutated.Pages {
		if mutated.Pages[i].UrlPath == "page1" {
			mutated.Pages[i].ContentHash = contentHashFor("Page One (edited)", mutated.Pages[i].Header.Tags, "")
		}
	}
	next := Build(mutated, cfg, nil, media.ImagePlanInput{}, media.VideoPlanInput{})

	byId := func(plan model.BuildPlan) map[ids.TaskId]model.BuildTask {
		out := make(map[ids.TaskId]model.BuildTask, len(plan.Tasks))
		for _, t := range plan.Tasks {
			out[t.Id] = t
		}
		return out
	}
	baseById, nextById := byId(base), byId(next)

	var page1Id, page2Id ids.TaskId
	for id, task := range baseById {
		if task.Kind == model.KindRenderPage && task.SourcePage == ids.HashDoc("articles/page1.md") {
			page1Id = id
		}
		if task.Kind == model.KindRenderPage && task.SourcePage == ids.HashDoc("articles/page2.md") {
			page2Id = id
		}
	}
	if baseById[page1Id].InputsFingerprint == nextById[page1Id].InputsFingerprint {
		t.Fatalf("page1's fingerprint must change when its content_hash changes")
	}
	if baseById[page2Id].InputsFingerprint != nextById[page2Id].InputsFingerprint {
		t.Fatalf("page2's fingerprint must stay stable when only page1 changes")
	}
}

func TestBuildConfigChangeInvalidatesEverything(t *testing.T) {
	content := site1()
	cfg := testConfig()
	base := Build(content, cfg, nil, media.ImagePlanInput{}, media.VideoPlanInput{})

	cfg2 := testConfig()
	cfg2.Theme.Name = "midnight"
	next := Build(content, cfg2, nil, media.ImagePlanInput{}, media.VideoPlanInput{})

	if len(base.Tasks) != len(next.Tasks) {
		t.Fatalf("task count should not change from a config-only edit")
	}
	for i := range base.Tasks {
		if base.Tasks[i].InputsFingerprint == next.Tasks[i].InputsFingerprint {
			t.Fatalf("task %d fingerprint unchanged after config_hash changed", i)
		}
	}
}

func TestConfigHashStableAcrossVarOrdering(t *testing.T) {
	cfg := testConfig()
	cfg.Theme.Vars = map[string]string{"accent": "#ff0000", "bg": "#000000"}
	h1 := ConfigHash(cfg)
	cfg.Theme.Vars = map[string]string{"bg": "#000000", "accent": "#ff0000"}
	h2 := ConfigHash(cfg)
	if h1 != h2 {
		t.Fatalf("ConfigHash must not depend on map iteration order")
	}
}
