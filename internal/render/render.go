// Package render implements the renderer collaborator named in spec
// §6: three pure functions — render_page, render_blog_index,
// render_series (plus render_tag_index and render_redirect_page) —
// that turn a Page's markdown body and assembled context into an
// HTML string, minified before the executor writes it.
package render

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"

	chroma_html "github.com/alecthomas/chroma/v2/formatters/html"
	admonitions "github.com/stefanfritsch/goldmark-admonitions"
	"github.com/gohugoio/hugo-goldmark-extensions/passthrough"
	"github.com/tdewolff/minify/v2"
	tdminify "github.com/tdewolff/minify/v2/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"stbl2/internal/feed"
	"stbl2/internal/model"
)

// Renderer wraps a configured goldmark instance plus an HTML
// minifier, mirroring the teacher's single long-lived parser/minifier
// pair rather than rebuilding either per call.
type Renderer struct {
	md       goldmark.Markdown
	minifier *minify.M
}

// New builds a Renderer with the engine's fixed markdown extension set:
// GFM, frontmatter-tolerant meta, chroma syntax highlighting (nord
// theme, CSS classes), math passthrough (kept verbatim for a
// client-side renderer), and admonition blocks.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			meta.Meta,
			highlighting.NewHighlighting(
				highlighting.WithStyle("nord"),
				highlighting.WithFormatOptions(chroma_html.WithClasses(true)),
			),
			passthrough.New(passthrough.Config{
				InlineDelimiters: []passthrough.Delimiters{{Open: "$", Close: "$"}},
				BlockDelimiters:  []passthrough.Delimiters{{Open: "$$", Close: "$$"}},
			}),
			&admonitions.Extender{},
		),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	m := minify.New()
	m.Add("text/html", &tdminify.Minifier{KeepEndTags: true})

	return &Renderer{md: md, minifier: m}
}

func (r *Renderer) toHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render: convert markdown: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) minify(rawHTML string) (string, error) {
	out, err := r.minifier.String("text/html", rawHTML)
	if err != nil {
		return rawHTML, fmt.Errorf("render: minify: %w", err)
	}
	return out, nil
}

// Context carries the fields every page-shaped render call needs
// beyond its specific arguments, matching the executor's view of a
// Project plus the URL currently being rendered.
type Context struct {
	Site      model.SiteMeta
	BuildDate string
}

// RenderPage implements render_page(project, page, current_href,
// build_date) -> HTML.
func (r *Renderer) RenderPage(ctx Context, page model.Page, currentHref string) (string, error) {
	body, err := r.toHTML(page.BodyMarkdown)
	if err != nil {
		return "", err
	}
	doc := pageShell(ctx, page.Header.Title, currentHref, body)
	return r.minify(doc)
}

// RenderSeries implements render_series(project, series_index, parts)
// -> HTML: the series landing page, linking every included part in
// order.
func (r *Renderer) RenderSeries(ctx Context, series model.Series, currentHref string) (string, error) {
	intro, err := r.toHTML(series.Index.BodyMarkdown)
	if err != nil {
		return "", err
	}
	var list strings.Builder
	list.WriteString(`<ol class="series-parts">`)
	for _, part := range feed.IncludedParts(series) {
		fmt.Fprintf(&list, `<li><a href="%s">%s</a></li>`, html.EscapeString(part.Page.UrlPath), html.EscapeString(part.Page.Header.Title))
	}
	list.WriteString(`</ol>`)
	doc := pageShell(ctx, series.Index.Header.Title, currentHref, intro+list.String())
	return r.minify(doc)
}

// BlogIndexInput is the set of fields render_blog_index needs beyond
// the shared Context.
type BlogIndexInput struct {
	Title      string
	Items      []feed.Item
	PageNo     int
	TotalPages int
	PrevHref   string
	NextHref   string
}

// RenderBlogIndex implements render_blog_index(project, title, items,
// prev?, next?, page_no, total_pages) -> HTML.
func (r *Renderer) RenderBlogIndex(ctx Context, in BlogIndexInput, currentHref string) (string, error) {
	var body strings.Builder
	body.WriteString(`<ul class="blog-feed">`)
	for _, item := range in.Items {
		switch item.Kind {
		case feed.ItemPost:
			fmt.Fprintf(&body, `<li><a href="%s">%s</a></li>`, html.EscapeString(item.Post.UrlPath), html.EscapeString(item.Post.Header.Title))
		case feed.ItemSeries:
			fmt.Fprintf(&body, `<li><a href="%s">%s</a> (series)</li>`, html.EscapeString(item.Series.Index.UrlPath), html.EscapeString(item.Series.Index.Header.Title))
		}
	}
	body.WriteString(`</ul>`)
	if in.TotalPages > 1 {
		body.WriteString(`<nav class="pagination">`)
		if in.PrevHref != "" {
			fmt.Fprintf(&body, `<a rel="prev" href="%s">newer</a>`, html.EscapeString(in.PrevHref))
		}
		fmt.Fprintf(&body, `<span>page %d of %d</span>`, in.PageNo, in.TotalPages)
		if in.NextHref != "" {
			fmt.Fprintf(&body, `<a rel="next" href="%s">older</a>`, html.EscapeString(in.NextHref))
		}
		body.WriteString(`</nav>`)
	}
	doc := pageShell(ctx, in.Title, currentHref, body.String())
	return r.minify(doc)
}

// RenderTagIndex implements render_tag_index(project, tag, pages) ->
// HTML.
func (r *Renderer) RenderTagIndex(ctx Context, tag string, pages []model.Page, currentHref string) (string, error) {
	var body strings.Builder
	fmt.Fprintf(&body, `<h1>Tag: %s</h1><ul class="tag-pages">`, html.EscapeString(tag))
	for _, p := range pages {
		fmt.Fprintf(&body, `<li><a href="%s">%s</a></li>`, html.EscapeString(p.UrlPath), html.EscapeString(p.Header.Title))
	}
	body.WriteString(`</ul>`)
	doc := pageShell(ctx, "Tag: "+tag, currentHref, body.String())
	return r.minify(doc)
}

// RenderTagsIndex implements the tags-of-tags landing page.
func (r *Renderer) RenderTagsIndex(ctx Context, tags []string, currentHref string) (string, error) {
	var body strings.Builder
	body.WriteString(`<h1>Tags</h1><ul class="all-tags">`)
	for _, tag := range tags {
		fmt.Fprintf(&body, `<li><a href="/tags/%s/">%s</a></li>`, html.EscapeString(tag), html.EscapeString(tag))
	}
	body.WriteString(`</ul>`)
	doc := pageShell(ctx, "Tags", currentHref, body.String())
	return r.minify(doc)
}

// RenderRedirectPage implements render_redirect_page(href) -> HTML:
// the flat fallback stub that pretty+fallback URL style writes
// alongside the directory-style page.
func RenderRedirectPage(href string) string {
	return fmt.Sprintf(
		`<!doctype html><meta charset="utf-8"><meta http-equiv="refresh" content="0; url=%s"><link rel="canonical" href="%s">`,
		html.EscapeString(href), html.EscapeString(href),
	)
}

// RenderVarsCss renders a site's theme variables as CSS custom
// properties on :root, the content GenerateVarsCss writes to
// artifacts/css/vars.css.
func RenderVarsCss(vars map[string]string) []byte {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	out.WriteString(":root{")
	for _, k := range keys {
		fmt.Fprintf(&out, "--%s:%s;", k, vars[k])
	}
	out.WriteString("}")
	return []byte(out.String())
}

func pageShell(ctx Context, title, currentHref, body string) string {
	return fmt.Sprintf(
		`<!doctype html><html lang="%s"><head><meta charset="utf-8"><title>%s</title><link rel="stylesheet" href="/assets/css/vars.css"></head><body data-href="%s"><main>%s</main><footer>%s</footer></body></html>`,
		html.EscapeString(ctx.Site.Language), html.EscapeString(title), html.EscapeString(currentHref), body, html.EscapeString(ctx.BuildDate),
	)
}
