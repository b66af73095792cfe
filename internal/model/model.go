// Package model defines the engine's content and planning entities:
// documents, pages, series, the assembled site, build tasks, and the
// configuration surface the engine consumes. It is deliberately inert
// — no filesystem I/O, no rendering, just the data shapes shared by
// scan, assemble, plan, and exec.
package model

import (
	"path"
	"time"

	"stbl2/internal/ids"
)

// DocKind classifies a discovered document before assembly groups it
// into pages and series.
type DocKind int

const (
	DocPage DocKind = iota
	DocSeriesIndex
	DocSeriesPart
)

// Header carries the normalized frontmatter fields a document was
// parsed with. Header parsing itself lives in internal/header; this
// is the shape assembly and planning operate on.
type Header struct {
	Title           string
	Tags            []string
	Published       *time.Time
	Updated         *time.Time
	Expires         *time.Time
	IsPublished     bool
	ExcludeFromBlog bool
	Template        string
	ContentType     string
	Part            *int
	UUID            string
	Authors         []string
	AbstractText    string
	Banner          string
	Comments        bool
}

// SourceDoc is a raw document as read from disk.
type SourceDoc struct {
	SourcePath string
	DirPath    string
	FileName   string
	Raw        string
}

// ParsedDoc is a header plus body markdown.
type ParsedDoc struct {
	Src             SourceDoc
	Header          Header
	BodyMarkdown    string
	HeaderPresent   bool
	ModTime         time.Time
}

// DiscoveredDoc is a parsed document plus its discovery
// classification, the input to Assemble.
type DiscoveredDoc struct {
	Parsed    ParsedDoc
	Kind      DocKind
	SeriesDir string // empty unless part of a series
}

// MediaKind distinguishes image from video media references.
type MediaKind int

const (
	MediaImage MediaKind = iota
	MediaVideo
)

// ImageAttr is one parsed attribute token following an image
// destination (";banner", ";40%", or an unrecognized token kept
// verbatim).
type ImageAttr struct {
	Banner       bool
	WidthPercent int // 0 when not set
	Unknown      string
}

// VideoAttr is one parsed attribute token following a video
// destination.
type VideoAttr struct {
	PreferP int // 0 when not set
	Unknown string
}

// MediaRef is a parsed image or video reference extracted from a
// page's markdown body.
type MediaRef struct {
	Kind     MediaKind
	Path     string // raw destination, e.g. "images/foo.jpg"
	Alt      string
	PreferP  int // video only; defaults to 720
	ImgAttrs []ImageAttr
	VidAttrs []VideoAttr
}

// Page is a single renderable document: a standalone page, a series
// index, or a series part.
type Page struct {
	Id           ids.DocId
	SourcePath   string
	Header       Header
	BodyMarkdown string
	BannerName   string
	MediaRefs    []MediaRef
	UrlPath      string
	ContentHash  ids.ContentHash
}

// SeriesPart pairs a page with its parsed part number.
type SeriesPart struct {
	PartNo int
	Page   Page
}

// Series groups an index page with its ordered parts.
type Series struct {
	Id      ids.SeriesId
	DirPath string
	Index   Page
	Parts   []SeriesPart // sorted ascending by PartNo
}

// DiagnosticLevel distinguishes recoverable warnings from
// build-aborting errors.
type DiagnosticLevel int

const (
	Warning DiagnosticLevel = iota
	Error
)

func (l DiagnosticLevel) String() string {
	if l == Error {
		return "error"
	}
	return "warning"
}

// Diagnostic is a single content-level finding collected during
// assembly or planning.
type Diagnostic struct {
	Level      DiagnosticLevel
	SourcePath string
	Message    string
}

// WriteBackEdit is an external-collaborator instruction to rewrite a
// source document's header/body in place (e.g. a CLI `upgrade`
// subcommand); the engine only ever produces the plan, never performs
// the write.
type WriteBackEdit struct {
	Path           string
	NewHeaderText  *string
	NewBody        *string
}

// WriteBackPlan collects zero or more WriteBackEdits.
type WriteBackPlan struct {
	Edits []WriteBackEdit
}

// SiteContent is assembly's output: the full set of pages and series,
// any diagnostics raised along the way, and an optional write-back
// plan.
type SiteContent struct {
	Pages       []Page
	Series      []Series
	Diagnostics []Diagnostic
	WriteBack   WriteBackPlan
}

// ContentId names one of the logical inputs a BuildTask reads.
type ContentId struct {
	Doc    *ids.DocId
	Series *ids.SeriesId
	Tag    string
	Asset  string
	Image  string
	Video  string
}

func ContentDoc(id ids.DocId) ContentId       { return ContentId{Doc: &id} }
func ContentSeries(id ids.SeriesId) ContentId { return ContentId{Series: &id} }
func ContentTag(tag string) ContentId         { return ContentId{Tag: tag} }
func ContentAsset(rel string) ContentId       { return ContentId{Asset: rel} }
func ContentImage(rel string) ContentId       { return ContentId{Image: rel} }
func ContentVideo(rel string) ContentId       { return ContentId{Video: rel} }

// OutputArtifact names one file the engine will write.
type OutputArtifact struct {
	Path string
}

// ImageFormat is the closed set of encoders the media codec supports.
type ImageFormat int

const (
	FormatJpeg ImageFormat = iota
	FormatPng
	FormatWebp
	FormatAvif
)

func (f ImageFormat) String() string {
	switch f {
	case FormatJpeg:
		return "jpeg"
	case FormatPng:
		return "png"
	case FormatWebp:
		return "webp"
	case FormatAvif:
		return "avif"
	default:
		return "unknown"
	}
}

// TaskKind is the engine's closed tagged variant over every kind of
// build task. Exactly one of the embedded field groups is meaningful
// for a given Kind.
type TaskKind int

const (
	KindRenderPage TaskKind = iota
	KindRenderBlogIndex
	KindRenderSeries
	KindRenderTagIndex
	KindRenderTagsIndex
	KindRenderFrontPage
	KindGenerateRss
	KindGenerateSitemap
	KindGenerateVarsCss
	KindCopyAsset
	KindCopyImageOriginal
	KindResizeImage
	KindCopyVideoOriginal
	KindTranscodeVideoMp4
	KindExtractVideoPoster
)

// String returns the kind_tag label folded into TaskId/InputFingerprint
// hashes, and used for diagnostics.
func (k TaskKind) String() string {
	switch k {
	case KindRenderPage:
		return "RenderPage"
	case KindRenderBlogIndex:
		return "RenderBlogIndex"
	case KindRenderSeries:
		return "RenderSeries"
	case KindRenderTagIndex:
		return "RenderTagIndex"
	case KindRenderTagsIndex:
		return "RenderTagsIndex"
	case KindRenderFrontPage:
		return "RenderFrontPage"
	case KindGenerateRss:
		return "GenerateRss"
	case KindGenerateSitemap:
		return "GenerateSitemap"
	case KindGenerateVarsCss:
		return "GenerateVarsCss"
	case KindCopyAsset:
		return "CopyAsset"
	case KindCopyImageOriginal:
		return "CopyImageOriginal"
	case KindResizeImage:
		return "ResizeImage"
	case KindCopyVideoOriginal:
		return "CopyVideoOriginal"
	case KindTranscodeVideoMp4:
		return "TranscodeVideoMp4"
	case KindExtractVideoPoster:
		return "ExtractVideoPoster"
	default:
		return "Unknown"
	}
}

// IsMedia reports whether this kind is dispatched to the parallel
// image/video worker pools in Phase B rather than executed
// sequentially in Phase A.
func (k TaskKind) IsMedia() bool {
	switch k {
	case KindCopyImageOriginal, KindResizeImage,
		KindCopyVideoOriginal, KindTranscodeVideoMp4, KindExtractVideoPoster:
		return true
	default:
		return false
	}
}

// BuildTask is one node of the build plan's DAG.
type BuildTask struct {
	Id                ids.TaskId
	Kind              TaskKind
	SourcePage        ids.DocId // RenderPage, RenderBlogIndex
	PageNo            uint32    // RenderBlogIndex
	Series            ids.SeriesId
	Tag               string
	Vars              map[string]string // GenerateVarsCss
	AssetSource       string            // CopyAsset, media copy/resize/transcode
	AssetOutRel       string
	Width             uint32 // ResizeImage
	Height            uint32 // TranscodeVideoMp4
	Quality           uint8  // ResizeImage
	Formats           []ImageFormat // ResizeImage: selected per source alpha + format mode
	PosterTimeSec     uint32 // ExtractVideoPoster

	InputsFingerprint ids.InputFingerprint
	Inputs            []ContentId
	Outputs           []OutputArtifact
}

// BuildPlan is the full, deterministically ordered DAG: tasks sorted
// by TaskId ascending, edges sorted lexicographically by (from, to).
type BuildPlan struct {
	Tasks []BuildTask
	Edges []Edge
}

// Edge is a dependency from one task to another (from must run before
// to can be considered for aggregation, though Phase A's execution
// order already satisfies this for sequential tasks).
type Edge struct {
	From ids.TaskId
	To   ids.TaskId
}

// CachedTask is the persisted cache record: exactly what the cache
// store's get/put contract works with.
type CachedTask struct {
	TaskId            string
	InputsFingerprint [ids.Size]byte
	Outputs           []string
}

// --- project / configuration surface ---

type UrlStyle int

const (
	UrlHtml UrlStyle = iota
	UrlPretty
	UrlPrettyWithFallback
)

func ParseUrlStyle(s string) (UrlStyle, bool) {
	switch s {
	case "html":
		return UrlHtml, true
	case "pretty":
		return UrlPretty, true
	case "pretty+fallback":
		return UrlPrettyWithFallback, true
	default:
		return UrlHtml, false
	}
}

func (s UrlStyle) String() string {
	switch s {
	case UrlPretty:
		return "pretty"
	case UrlPrettyWithFallback:
		return "pretty+fallback"
	default:
		return "html"
	}
}

type FormatMode int

const (
	FormatModeNormal FormatMode = iota
	FormatModeFast
)

type SiteMeta struct {
	Id           string
	Title        string
	AbstractText string
	BaseURL      string
	Language     string
	Timezone     string
	UrlStyle     UrlStyle
}

type ThemeConfig struct {
	Name string
	Vars map[string]string
}

type ImagesConfig struct {
	Widths     []uint32
	Quality    uint8
	FormatMode FormatMode
}

type VideoConfig struct {
	Heights      []uint32
	PosterTimeSec uint32
}

type MediaConfig struct {
	Images ImagesConfig
	Video  VideoConfig
}

type AssetsConfig struct {
	CacheBusting bool
}

type BlogAbstractConfig struct {
	Enabled  bool
	MaxChars int
}

type BlogSeriesConfig struct {
	LatestParts int
}

type BlogConfig struct {
	PageSize int
	Series   BlogSeriesConfig
	Abstract BlogAbstractConfig
}

type RssConfig struct {
	Enabled  bool
	MaxItems int // 0 = unlimited
	TtlDays  int // 0 = unset
}

// SiteConfig is the configuration surface the engine consumes,
// enumerated in spec §6. It is produced by the (out of scope) YAML
// loader in internal/config.
type SiteConfig struct {
	Site   SiteMeta
	Theme  ThemeConfig
	Media  MediaConfig
	Assets AssetsConfig
	Blog   BlogConfig
	Rss    RssConfig
}

// Project threads a single loaded config and assembled content
// through planning and execution.
type Project struct {
	Root    string
	Config  SiteConfig
	Content SiteContent
}

// LogicalKeyFromSourcePath derives the URL-independent logical key of
// a page from its source path: strip the leading "articles/" prefix,
// drop leading underscore-prefixed ("hidden") directory segments, and
// drop the file extension.
func LogicalKeyFromSourcePath(sourcePath string) string {
	p := sourcePath
	const prefix = "articles/"
	if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
		p = p[len(prefix):]
	}
	dir, file := path.Split(p)
	segs := splitNonEmpty(dir)
	i := 0
	for i < len(segs) && len(segs[i]) > 0 && segs[i][0] == '_' {
		i++
	}
	kept := append([]string(nil), segs[i:]...)
	ext := path.Ext(file)
	stem := file[:len(file)-len(ext)]
	kept = append(kept, stem)
	return path.Join(kept...)
}

func splitNonEmpty(dir string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(dir); i++ {
		if i == len(dir) || dir[i] == '/' {
			if i > start {
				out = append(out, dir[start:i])
			}
			start = i + 1
		}
	}
	return out
}
