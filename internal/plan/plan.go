// Package plan builds the deterministic task DAG described in spec
// §4.4: one BuildTask per renderable unit (page, series, tag, blog
// index page, feed, stylesheet, media variant, asset), wired together
// with dependency edges, and folded into fingerprints that change
// exactly when their declared inputs change.
package plan

import (
	"encoding/json"
	"sort"
	"strconv"

	"stbl2/internal/feed"
	"stbl2/internal/ids"
	"stbl2/internal/media"
	"stbl2/internal/model"
	"stbl2/internal/urlmap"
)

// AssetRef is one resolved static asset the plan copies verbatim to
// the output-relative path it is keyed by in Build's assets map.
type AssetRef struct {
	Source string
	Hash   ids.Hash
}

// Build constructs the full BuildPlan per spec §4.4. assets maps each
// resolved output-relative asset path to its source and content hash.
func Build(content model.SiteContent, cfg model.SiteConfig, assets map[string]AssetRef, images media.ImagePlanInput, videos media.VideoPlanInput) model.BuildPlan {
	b := &builder{
		content:       content,
		cfg:           cfg,
		mapper:        urlmap.New(cfg.Site.UrlStyle),
		configHash:    ConfigHash(cfg),
		pageTaskId:    make(map[ids.DocId]ids.TaskId),
		seriesTaskId:  make(map[ids.SeriesId]ids.TaskId),
		tagTaskId:     make(map[string]ids.TaskId),
	}

	b.emitPages()
	b.emitSeries()
	b.emitTags()
	b.emitBlogIndexes()
	b.emitFeeds()
	b.emitVarsCss()
	b.emitAssets(assets)
	b.tasks = append(b.tasks, media.PlanImageTasks(images, cfg.Media.Images.Widths, cfg.Media.Images.Quality, cfg.Media.Images.FormatMode, b.configHash)...)
	b.tasks = append(b.tasks, media.PlanVideoTasks(videos, cfg.Media.Video.Heights, cfg.Media.Video.PosterTimeSec, b.configHash)...)

	return model.BuildPlan{
		Tasks: sortedTasks(b.tasks),
		Edges: sortedEdges(dedupeEdges(b.edges)),
	}
}

type builder struct {
	content model.SiteContent
	cfg     model.SiteConfig
	mapper  urlmap.Mapper

	configHash ids.Hash

	tasks []model.BuildTask
	edges []model.Edge

	// pageTaskId maps every standalone page and every series part to
	// the RenderPage task that renders it. A series' index page has
	// no entry here: it is rendered as part of RenderSeries instead.
	pageTaskId map[ids.DocId]ids.TaskId
	// seriesTaskId maps a series to the RenderSeries task that renders
	// its index, used when the series' index page is the thing a tag
	// or blog-index range needs to depend on.
	seriesTaskId map[ids.SeriesId]ids.TaskId
	tagTaskId    map[string]ids.TaskId
}

func (b *builder) addTask(t model.BuildTask) {
	b.tasks = append(b.tasks, t)
}

func (b *builder) addEdge(from, to ids.TaskId) {
	b.edges = append(b.edges, model.Edge{From: from, To: to})
}

func outputsFor(m urlmap.Mapping) []model.OutputArtifact {
	outs := []model.OutputArtifact{{Path: m.PrimaryOutput}}
	if m.Fallback != "" {
		outs = append(outs, model.OutputArtifact{Path: m.Fallback})
	}
	return outs
}

// renderPage emits a RenderPage task for a standalone page or a
// series part, and records it in pageTaskId.
func (b *builder) renderPage(p model.Page) ids.TaskId {
	id := ids.NewTaskId("render_page", p.UrlPath)
	m := b.mapper.Map(p.UrlPath)
	t := model.BuildTask{
		Id:                id,
		Kind:              model.KindRenderPage,
		SourcePage:        p.Id,
		InputsFingerprint: ids.NewFingerprint(id, model.KindRenderPage.String(), b.configHash, []ids.Hash{ids.Hash(p.ContentHash)}),
		Inputs:            []model.ContentId{model.ContentDoc(p.Id)},
		Outputs:           outputsFor(m),
	}
	b.addTask(t)
	b.pageTaskId[p.Id] = id
	return id
}

func (b *builder) emitPages() {
	for _, p := range b.content.Pages {
		if !feed.IsPublishedPage(p) {
			continue
		}
		// BlogIndex-templated pages are rendered by emitBlogIndexes
		// (their page-1 pagination key maps to the same output path
		// as the page itself, e.g. the root "index").
		if p.Header.Template == "BlogIndex" {
			continue
		}
		b.renderPage(p)
	}
}

func (b *builder) emitSeries() {
	for _, s := range b.content.Series {
		if !feed.IsPublishedPage(s.Index) {
			continue
		}
		parts := feed.IncludedParts(s)
		if len(parts) == 0 {
			continue
		}

		contentHashes := []ids.Hash{ids.Hash(s.Index.ContentHash)}
		var underlying []ids.TaskId
		for _, part := range parts {
			underlying = append(underlying, b.renderPage(part.Page))
			contentHashes = append(contentHashes, ids.Hash(part.Page.ContentHash))
		}
		sortHashes(contentHashes)

		id := ids.NewTaskId("render_series", s.DirPath)
		m := b.mapper.MapSeriesIndex(s.Index.UrlPath)
		b.addTask(model.BuildTask{
			Id:                id,
			Kind:              model.KindRenderSeries,
			Series:            s.Id,
			InputsFingerprint: ids.NewFingerprint(id, model.KindRenderSeries.String(), b.configHash, contentHashes),
			Inputs:            []model.ContentId{model.ContentSeries(s.Id)},
			Outputs:           outputsFor(m),
		})
		b.seriesTaskId[s.Id] = id
		for _, u := range underlying {
			b.addEdge(u, id)
		}
	}
}

// contributorOf returns the task that renders the given page — its
// own RenderPage task, or (for a series index) the RenderSeries task
// that covers it.
func (b *builder) contributorOf(p model.Page) (ids.TaskId, bool) {
	if id, ok := b.pageTaskId[p.Id]; ok {
		return id, true
	}
	for _, s := range b.content.Series {
		if s.Index.Id == p.Id {
			if id, ok := b.seriesTaskId[s.Id]; ok {
				return id, true
			}
		}
	}
	return ids.TaskId{}, false
}

func (b *builder) emitTags() {
	tagMap, _ := feed.TagMap(b.content)
	tags := make([]string, 0, len(tagMap))
	for tag := range tagMap {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		pages := tagMap[tag]
		var contentHashes []ids.Hash
		var deps []ids.TaskId
		for _, p := range pages {
			contentHashes = append(contentHashes, ids.Hash(p.ContentHash))
			if id, ok := b.contributorOf(p); ok {
				deps = append(deps, id)
			}
		}
		sortHashes(contentHashes)

		id := ids.NewTaskId("render_tag", tag)
		m := b.mapper.Map("tags/" + tag)
		b.addTask(model.BuildTask{
			Id:                id,
			Kind:              model.KindRenderTagIndex,
			Tag:               tag,
			InputsFingerprint: ids.NewFingerprint(id, model.KindRenderTagIndex.String(), b.configHash, contentHashes),
			Inputs:            []model.ContentId{model.ContentTag(tag)},
			Outputs:           outputsFor(m),
		})
		b.tagTaskId[tag] = id
		for _, dep := range deps {
			b.addEdge(dep, id)
		}
	}

	tagsIndexId := ids.NewTaskId("render_tags_index")
	m := b.mapper.Map("tags")
	b.addTask(model.BuildTask{
		Id:                tagsIndexId,
		Kind:              model.KindRenderTagsIndex,
		InputsFingerprint: ids.NewFingerprint(tagsIndexId, model.KindRenderTagsIndex.String(), b.configHash, []ids.Hash{ids.NewBuilder("stbl2.tagkeys.v1").StrSeq(tags).Finish()}),
		Outputs:           outputsFor(m),
	})
	for _, tag := range tags {
		b.addEdge(b.tagTaskId[tag], tagsIndexId)
	}
}

// itemContentHashes returns the sorted content-hash set a blog feed
// item folds into a dependent task's fingerprint, and the tasks that
// produce it (for dependency edges).
func (b *builder) itemContentHashes(item feed.Item) ([]ids.Hash, []ids.TaskId) {
	if item.Kind == feed.ItemPost {
		id, ok := b.contributorOf(*item.Post)
		var deps []ids.TaskId
		if ok {
			deps = append(deps, id)
		}
		return []ids.Hash{ids.Hash(item.Post.ContentHash)}, deps
	}
	s := item.Series
	hashes := []ids.Hash{ids.Hash(s.Index.ContentHash)}
	var deps []ids.TaskId
	if id, ok := b.seriesTaskId[s.Id]; ok {
		deps = append(deps, id)
	}
	for _, part := range feed.IncludedParts(*s) {
		hashes = append(hashes, ids.Hash(part.Page.ContentHash))
	}
	sortHashes(hashes)
	return hashes, deps
}

func (b *builder) emitBlogIndexes() {
	for _, p := range b.content.Pages {
		if p.Header.Template != "BlogIndex" || !feed.IsPublishedPage(p) {
			continue
		}
		items := feed.CollectBlogFeed(b.content, p.Id)
		ranges := feed.Paginate(len(items), b.cfg.Blog.PageSize, p.UrlPath)

		for _, r := range ranges {
			var contentHashes []ids.Hash
			var deps []ids.TaskId
			for _, item := range items[r.Start:r.End] {
				hashes, itemDeps := b.itemContentHashes(item)
				contentHashes = append(contentHashes, hashes...)
				deps = append(deps, itemDeps...)
			}
			sortHashes(contentHashes)

			id := ids.NewTaskId("render_blog_index", p.UrlPath, strconv.Itoa(r.PageNo))
			m := b.mapper.Map(r.LogicalKey)
			b.addTask(model.BuildTask{
				Id:                id,
				Kind:              model.KindRenderBlogIndex,
				SourcePage:        p.Id,
				PageNo:            uint32(r.PageNo),
				InputsFingerprint: ids.NewFingerprint(id, model.KindRenderBlogIndex.String(), b.configHash, contentHashes),
				Inputs:            []model.ContentId{model.ContentDoc(p.Id)},
				Outputs:           outputsFor(m),
			})
			for _, dep := range deps {
				b.addEdge(dep, id)
			}
		}
	}
}

// emitFeeds emits GenerateRss (if enabled) and always GenerateSitemap,
// over the site-wide feed (no single blog-index source page). Per the
// unresolved-upstream open question in spec §9, the fingerprint folds
// only feed-item content hashes, not the tag-key set — preserving the
// existing source behavior even though dependency edges still include
// every contributing task (pages, series, and tags alike).
func (b *builder) emitFeeds() {
	items := feed.CollectBlogFeed(b.content, ids.DocId{})
	var contentHashes []ids.Hash
	var deps []ids.TaskId
	for _, item := range items {
		hashes, itemDeps := b.itemContentHashes(item)
		contentHashes = append(contentHashes, hashes...)
		deps = append(deps, itemDeps...)
	}
	sortHashes(contentHashes)
	for _, id := range b.tagTaskId {
		deps = append(deps, id)
	}

	if b.cfg.Rss.Enabled {
		id := ids.NewTaskId("generate_rss")
		b.addTask(model.BuildTask{
			Id:                id,
			Kind:              model.KindGenerateRss,
			InputsFingerprint: ids.NewFingerprint(id, model.KindGenerateRss.String(), b.configHash, contentHashes),
			Outputs:           []model.OutputArtifact{{Path: "rss.xml"}},
		})
		for _, dep := range deps {
			b.addEdge(dep, id)
		}
	}

	sitemapId := ids.NewTaskId("generate_sitemap")
	b.addTask(model.BuildTask{
		Id:                sitemapId,
		Kind:              model.KindGenerateSitemap,
		InputsFingerprint: ids.NewFingerprint(sitemapId, model.KindGenerateSitemap.String(), b.configHash, contentHashes),
		Outputs:           []model.OutputArtifact{{Path: "sitemap.xml"}},
	})
	for _, dep := range deps {
		b.addEdge(dep, sitemapId)
	}
}

func (b *builder) emitVarsCss() {
	canon := canonicalVarsJSON(b.cfg.Theme.Vars)
	h := ids.HashBytes(canon)
	id := ids.NewTaskId("generate_vars_css")
	b.addTask(model.BuildTask{
		Id:                id,
		Kind:              model.KindGenerateVarsCss,
		Vars:              b.cfg.Theme.Vars,
		InputsFingerprint: ids.NewFingerprint(id, model.KindGenerateVarsCss.String(), b.configHash, []ids.Hash{h}),
		Outputs:           []model.OutputArtifact{{Path: "assets/css/vars.css"}},
	})
}

func (b *builder) emitAssets(assets map[string]AssetRef) {
	paths := make([]string, 0, len(assets))
	for p := range assets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		a := assets[p]
		id := ids.NewTaskId("copy_asset", p)
		b.addTask(model.BuildTask{
			Id:                id,
			Kind:              model.KindCopyAsset,
			AssetSource:       a.Source,
			AssetOutRel:       p,
			InputsFingerprint: ids.NewFingerprint(id, model.KindCopyAsset.String(), b.configHash, []ids.Hash{a.Hash}),
			Inputs:            []model.ContentId{model.ContentAsset(p)},
			Outputs:           []model.OutputArtifact{{Path: p}},
		})
	}
}

// ConfigHash folds every SiteConfig field that affects rendered output
// into a single hash. Anything added to SiteConfig that changes what
// gets written must be added here too.
func ConfigHash(cfg model.SiteConfig) ids.Hash {
	sortedVars := sortedVarKeys(cfg.Theme.Vars)
	widths := append([]uint32(nil), cfg.Media.Images.Widths...)
	sort.Slice(widths, func(i, j int) bool { return widths[i] < widths[j] })
	heights := append([]uint32(nil), cfg.Media.Video.Heights...)
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	b := ids.NewBuilder("stbl2.config.v1").
		Str(cfg.Site.UrlStyle.String()).
		Str(cfg.Site.Title).
		Str(cfg.Site.AbstractText).
		Str(cfg.Site.BaseURL).
		Str(cfg.Site.Language).
		Str(cfg.Theme.Name)
	for _, k := range sortedVars {
		b.Str(k).Str(cfg.Theme.Vars[k])
	}
	for _, w := range widths {
		b.U64(uint64(w))
	}
	b.U64(uint64(cfg.Media.Images.Quality)).U64(uint64(cfg.Media.Images.FormatMode))
	for _, h := range heights {
		b.U64(uint64(h))
	}
	b.U64(uint64(cfg.Media.Video.PosterTimeSec))
	b.U64(boolU64(cfg.Assets.CacheBusting))
	b.U64(uint64(cfg.Blog.PageSize)).
		U64(uint64(cfg.Blog.Series.LatestParts)).
		U64(boolU64(cfg.Blog.Abstract.Enabled)).
		U64(uint64(cfg.Blog.Abstract.MaxChars))
	b.U64(boolU64(cfg.Rss.Enabled)).
		U64(uint64(cfg.Rss.MaxItems)).
		U64(uint64(cfg.Rss.TtlDays))
	return b.Finish()
}

func boolU64(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func sortedVarKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// canonicalVarsJSON renders theme vars as canonical JSON: sorted keys,
// no insignificant whitespace — the content GenerateVarsCss writes and
// the bytes its fingerprint hashes.
func canonicalVarsJSON(vars map[string]string) []byte {
	keys := sortedVarKeys(vars)
	ordered := make([]struct {
		K string `json:"k"`
		V string `json:"v"`
	}, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, struct {
			K string `json:"k"`
			V string `json:"v"`
		}{K: k, V: vars[k]})
	}
	out, _ := json.Marshal(ordered)
	return out
}

func sortHashes(hs []ids.Hash) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Less(hs[j]) })
}

func sortedTasks(tasks []model.BuildTask) []model.BuildTask {
	out := append([]model.BuildTask(nil), tasks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Id.Less(out[j].Id) })
	return out
}

func sortedEdges(edges []model.Edge) []model.Edge {
	out := append([]model.Edge(nil), edges...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.From != b.From {
			return a.From.Less(b.From)
		}
		return a.To.Less(b.To)
	})
	return out
}

func dedupeEdges(edges []model.Edge) []model.Edge {
	seen := make(map[model.Edge]bool, len(edges))
	out := make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

