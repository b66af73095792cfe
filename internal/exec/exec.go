// Package exec implements the executor named in spec §4.6: it walks a
// BuildPlan, decides which tasks can be skipped against the cache,
// runs non-media tasks sequentially (phase A), then dispatches image
// and video tasks to two parallel worker pools (phase B), writing
// every output under out_dir and recording successes in the cache.
package exec

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"stbl2/internal/cache"
	"stbl2/internal/feed"
	"stbl2/internal/feedxml"
	"stbl2/internal/ids"
	"stbl2/internal/media"
	"stbl2/internal/model"
	"stbl2/internal/render"
	"stbl2/internal/urlmap"
	"stbl2/internal/util"
)

// Options configures one executor run.
type Options struct {
	OutDir            string
	Jobs              int // 0 lets the executor size both pools itself.
	RegenerateContent bool
	Cache             *cache.Store // nil disables caching entirely.
	Fs                afero.Fs     // nil defaults to the OS filesystem.
	BuildDate         string       // defaults to time.Now() if empty.
}

// Summary is the executor's return value, per spec §4.6.
type Summary struct {
	Executed     int
	Skipped      int
	ExecutedIds  []ids.TaskId
	SkippedIds   []ids.TaskId
	Failures     []Failure
}

// Failure records a non-fatal media task failure.
type Failure struct {
	TaskId ids.TaskId
	Err    error
}

// Executor runs a BuildPlan against a Project's content and
// configuration.
type Executor struct {
	content model.SiteContent
	cfg     model.SiteConfig
	opts    Options

	mapper   urlmap.Mapper
	renderer *render.Renderer
	imageCdc media.ImageCodec
	videoCdc media.VideoCodec
	fs       afero.Fs

	pagesById  map[ids.DocId]model.Page
	seriesById map[ids.SeriesId]model.Series
	tagMap     map[string][]model.Page
	tagsSorted []string
}

// New builds an Executor over project content and configuration.
func New(content model.SiteContent, cfg model.SiteConfig, opts Options) *Executor {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if opts.BuildDate == "" {
		opts.BuildDate = time.Now().UTC().Format(time.RFC3339)
	}

	e := &Executor{
		content:    content,
		cfg:        cfg,
		opts:       opts,
		mapper:     urlmap.New(cfg.Site.UrlStyle),
		renderer:   render.New(),
		fs:         fs,
		pagesById:  make(map[ids.DocId]model.Page),
		seriesById: make(map[ids.SeriesId]model.Series),
	}
	for _, p := range content.Pages {
		e.pagesById[p.Id] = p
	}
	for _, s := range content.Series {
		e.seriesById[s.Id] = s
		for _, part := range s.Parts {
			e.pagesById[part.Page.Id] = part.Page
		}
	}
	tagMap, _ := feed.TagMap(content)
	e.tagMap = tagMap
	for tag := range tagMap {
		e.tagsSorted = append(e.tagsSorted, tag)
	}
	sort.Strings(e.tagsSorted)
	return e
}

func (e *Executor) outPath(rel string) string {
	return path.Join(e.opts.OutDir, rel)
}

// Run executes plan and returns the execution summary.
func (e *Executor) Run(ctx context.Context, plan model.BuildPlan) (Summary, error) {
	var summary Summary
	var imageJobs, videoJobs []model.BuildTask

	for _, task := range plan.Tasks {
		if e.skippable(task) {
			summary.Skipped += skipWeight(task)
			summary.SkippedIds = append(summary.SkippedIds, task.Id)
			continue
		}
		if task.Kind.IsMedia() {
			if task.Kind == model.KindCopyImageOriginal || task.Kind == model.KindResizeImage {
				imageJobs = append(imageJobs, task)
			} else {
				videoJobs = append(videoJobs, task)
			}
			continue
		}

		outputs, err := e.executeTask(ctx, task)
		if err != nil {
			return summary, fmt.Errorf("exec: task %s (%s): %w", task.Id, task.Kind, err)
		}
		e.commit(task, outputs)
		summary.Executed++
		summary.ExecutedIds = append(summary.ExecutedIds, task.Id)
	}

	imagePool, videoPool := e.poolSizes()
	imageResults := e.runPool(imageJobs, imagePool, func(t model.BuildTask) ([]string, error) {
		return e.executeImageTask(t)
	})
	videoResults := e.runPool(videoJobs, videoPool, func(t model.BuildTask) ([]string, error) {
		return e.executeVideoTask(ctx, t)
	})

	for _, r := range append(imageResults, videoResults...) {
		if r.err != nil {
			summary.Failures = append(summary.Failures, Failure{TaskId: r.task.Id, Err: r.err})
			slog.Warn("media task failed", "task", r.task.Id.String(), "kind", r.task.Kind.String(), "error", r.err)
			continue
		}
		e.commit(r.task, r.outputs)
		summary.Executed++
		summary.ExecutedIds = append(summary.ExecutedIds, r.task.Id)
	}

	return summary, nil
}

func skipWeight(task model.BuildTask) int {
	if len(task.Outputs) == 0 {
		return 1
	}
	return len(task.Outputs)
}

func (e *Executor) poolSizes() (image int, video int) {
	image = e.opts.Jobs
	if image <= 0 {
		image = runtime.GOMAXPROCS(0)
	}
	if image < 1 {
		image = 1
	}
	video = e.opts.Jobs
	if video <= 0 {
		video = image / 4
	}
	if video < 1 {
		video = 1
	}
	return image, video
}

// skippable implements the skip decision in spec §4.6.
func (e *Executor) skippable(task model.BuildTask) bool {
	if e.opts.RegenerateContent && !task.Kind.IsMedia() {
		return false
	}
	if e.opts.Cache == nil {
		return false
	}
	rec, ok, err := e.opts.Cache.Get(task.Id)
	if err != nil {
		slog.Warn("cache get failed, executing task", "task", task.Id.String(), "error", err)
		return false
	}
	if !ok {
		return false
	}
	if rec.InputsFingerprint != task.InputsFingerprint {
		return false
	}
	for _, out := range rec.Outputs {
		if !util.Exists(e.fs, e.outPath(out)) {
			return false
		}
	}
	return true
}

// commit writes the cache record for a successfully executed task.
// Per spec §4.5, tasks with zero outputs never update the cache.
func (e *Executor) commit(task model.BuildTask, outputs []string) {
	if e.opts.Cache == nil || len(outputs) == 0 {
		return
	}
	if err := e.opts.Cache.Put(task.Id, task.InputsFingerprint, outputs); err != nil {
		slog.Warn("cache put failed", "task", task.Id.String(), "error", err)
	}
}

func (e *Executor) write(rel string, data []byte) error {
	return util.WriteFile(e.fs, e.outPath(rel), data)
}

func (e *Executor) renderContext() render.Context {
	return render.Context{Site: e.cfg.Site, BuildDate: e.opts.BuildDate}
}

// executeTask runs one non-media task (phase A) and returns the list
// of output paths it wrote.
func (e *Executor) executeTask(ctx context.Context, task model.BuildTask) ([]string, error) {
	switch task.Kind {
	case model.KindRenderPage:
		page, ok := e.pagesById[task.SourcePage]
		if !ok {
			return nil, fmt.Errorf("unknown source page %s", task.SourcePage)
		}
		href := e.mapper.Map(page.UrlPath).Href
		html, err := e.renderer.RenderPage(e.renderContext(), page, href)
		if err != nil {
			return nil, err
		}
		return e.writePageOutputs(task, href, html)

	case model.KindRenderSeries:
		series, ok := e.seriesById[task.Series]
		if !ok {
			return nil, fmt.Errorf("unknown series %s", task.Series)
		}
		href := e.mapper.MapSeriesIndex(series.Index.UrlPath).Href
		html, err := e.renderer.RenderSeries(e.renderContext(), series, href)
		if err != nil {
			return nil, err
		}
		return e.writePageOutputs(task, href, html)

	case model.KindRenderTagIndex:
		pages := e.tagMap[task.Tag]
		href := e.mapper.Map("tags/" + task.Tag).Href
		html, err := e.renderer.RenderTagIndex(e.renderContext(), task.Tag, pages, href)
		if err != nil {
			return nil, err
		}
		return e.writePageOutputs(task, href, html)

	case model.KindRenderTagsIndex:
		href := e.mapper.Map("tags").Href
		html, err := e.renderer.RenderTagsIndex(e.renderContext(), e.tagsSorted, href)
		if err != nil {
			return nil, err
		}
		return e.writePageOutputs(task, href, html)

	case model.KindRenderBlogIndex:
		return e.executeBlogIndex(task)

	case model.KindGenerateRss:
		items := feed.CollectBlogFeed(e.content, ids.DocId{})
		body, err := feedxml.RenderRss(e.cfg.Site, items, e.mapper, e.cfg.Rss.MaxItems, e.cfg.Rss.TtlDays, e.opts.BuildDate)
		if err != nil {
			return nil, err
		}
		return e.writeSingle(task, body)

	case model.KindGenerateSitemap:
		body, err := feedxml.RenderSitemap(e.cfg.Site, e.content, e.tagMap, e.mapper, e.opts.BuildDate)
		if err != nil {
			return nil, err
		}
		return e.writeSingle(task, body)

	case model.KindGenerateVarsCss:
		return e.writeSingle(task, render.RenderVarsCss(task.Vars))

	case model.KindCopyAsset:
		data, err := afero.ReadFile(afero.NewOsFs(), task.AssetSource)
		if err != nil {
			return nil, fmt.Errorf("read asset %s: %w", task.AssetSource, err)
		}
		return e.writeSingle(task, data)

	default:
		return nil, fmt.Errorf("unsupported task kind %s", task.Kind)
	}
}

func (e *Executor) writeSingle(task model.BuildTask, data []byte) ([]string, error) {
	if len(task.Outputs) != 1 {
		return nil, fmt.Errorf("task %s expected exactly one output, got %d", task.Id, len(task.Outputs))
	}
	rel := task.Outputs[0].Path
	if err := e.write(rel, data); err != nil {
		return nil, err
	}
	return []string{rel}, nil
}

// writePageOutputs writes the primary HTML at the mapped href and, for
// pretty+fallback, the redirect stub at the fallback path.
func (e *Executor) writePageOutputs(task model.BuildTask, href, html string) ([]string, error) {
	if len(task.Outputs) == 0 {
		return nil, fmt.Errorf("task %s has no outputs", task.Id)
	}
	primary := task.Outputs[0].Path
	if err := e.write(primary, []byte(html)); err != nil {
		return nil, err
	}
	written := []string{primary}
	if len(task.Outputs) > 1 {
		fallback := task.Outputs[1].Path
		if err := e.write(fallback, []byte(render.RenderRedirectPage(href))); err != nil {
			return nil, err
		}
		written = append(written, fallback)
	}
	return written, nil
}

func (e *Executor) executeBlogIndex(task model.BuildTask) ([]string, error) {
	page, ok := e.pagesById[task.SourcePage]
	if !ok {
		return nil, fmt.Errorf("unknown blog index source page %s", task.SourcePage)
	}
	items := feed.CollectBlogFeed(e.content, page.Id)
	ranges := feed.Paginate(len(items), e.cfg.Blog.PageSize, page.UrlPath)

	var r feed.Range
	found := false
	for _, candidate := range ranges {
		if uint32(candidate.PageNo) == task.PageNo {
			r = candidate
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("blog index page %d not found for %s", task.PageNo, page.UrlPath)
	}

	in := render.BlogIndexInput{
		Title:      page.Header.Title,
		Items:      items[r.Start:r.End],
		PageNo:     r.PageNo,
		TotalPages: r.TotalPages,
	}
	if r.PrevKey != "" {
		in.PrevHref = e.mapper.Map(r.PrevKey).Href
	}
	if r.NextKey != "" {
		in.NextHref = e.mapper.Map(r.NextKey).Href
	}
	href := e.mapper.Map(r.LogicalKey).Href
	html, err := e.renderer.RenderBlogIndex(e.renderContext(), in, href)
	if err != nil {
		return nil, err
	}
	return e.writePageOutputs(task, href, html)
}

type mediaResult struct {
	task    model.BuildTask
	outputs []string
	err     error
}

// runTask invokes handle for task, converting a panic (a codec crash
// on malformed media) into a per-task failure instead of taking down
// the whole worker pool.
func runTask(task model.BuildTask, handle func(model.BuildTask) ([]string, error)) (r mediaResult) {
	r.task = task
	defer func() {
		if p := recover(); p != nil {
			r.outputs = nil
			r.err = fmt.Errorf("panic: %v", p)
		}
	}()
	r.outputs, r.err = handle(task)
	return r
}

func (e *Executor) runPool(jobs []model.BuildTask, workers int, handle func(model.BuildTask) ([]string, error)) []mediaResult {
	if len(jobs) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	queue := make(chan model.BuildTask, len(jobs))
	results := make(chan mediaResult, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				results <- runTask(task, handle)
			}
		}()
	}
	for _, t := range jobs {
		queue <- t
	}
	close(queue)
	wg.Wait()
	close(results)

	out := make([]mediaResult, 0, len(jobs))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func (e *Executor) executeImageTask(task model.BuildTask) ([]string, error) {
	switch task.Kind {
	case model.KindCopyImageOriginal:
		dest := e.outPath(task.AssetOutRel)
		if err := ensureLocalCopy(task.AssetSource, dest); err != nil {
			return nil, err
		}
		return []string{task.AssetOutRel}, nil

	case model.KindResizeImage:
		img, err := e.imageCdc.Decode(task.AssetSource)
		if err != nil {
			return nil, err
		}
		var written []string
		for i, format := range task.Formats {
			data, err := e.imageCdc.ResizeAndEncode(img, int(task.Width), task.Quality, format)
			if err != nil {
				if err == media.ErrAvifUnavailable {
					slog.Warn("skipping avif output, no encoder available", "task", task.Id.String())
					continue
				}
				return nil, err
			}
			rel := task.Outputs[i].Path
			if err := e.write(rel, data); err != nil {
				return nil, err
			}
			written = append(written, rel)
		}
		return written, nil

	default:
		return nil, fmt.Errorf("unsupported image task kind %s", task.Kind)
	}
}

func (e *Executor) executeVideoTask(ctx context.Context, task model.BuildTask) ([]string, error) {
	switch task.Kind {
	case model.KindCopyVideoOriginal:
		dest := e.outPath(task.AssetOutRel)
		if err := ensureLocalCopy(task.AssetSource, dest); err != nil {
			return nil, err
		}
		return []string{task.AssetOutRel}, nil

	case model.KindExtractVideoPoster:
		dest := e.outPath(task.AssetOutRel)
		if err := mkdirFor(dest); err != nil {
			return nil, err
		}
		if err := e.videoCdc.ExtractPoster(ctx, task.AssetSource, dest, task.PosterTimeSec); err != nil {
			return nil, err
		}
		return []string{task.AssetOutRel}, nil

	case model.KindTranscodeVideoMp4:
		dest := e.outPath(task.AssetOutRel)
		if err := mkdirFor(dest); err != nil {
			return nil, err
		}
		if err := e.videoCdc.TranscodeMp4(ctx, task.AssetSource, dest, task.Height); err != nil {
			return nil, err
		}
		return []string{task.AssetOutRel}, nil

	default:
		return nil, fmt.Errorf("unsupported video task kind %s", task.Kind)
	}
}

func ensureLocalCopy(source, dest string) error {
	if err := mkdirFor(dest); err != nil {
		return err
	}
	return media.CopyOriginal(source, dest)
}

func mkdirFor(p string) error {
	return afero.NewOsFs().MkdirAll(path.Dir(p), 0o755)
}
