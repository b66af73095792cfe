// Package feed implements visibility rules, blog feed ordering, tag
// maps, and blog pagination — spec §4.3.
package feed

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"stbl2/internal/ids"
	"stbl2/internal/model"
)

// IsPublishedPage reports spec §4.3's visibility rule: a page is
// published iff its header says so.
func IsPublishedPage(p model.Page) bool {
	return p.Header.IsPublished
}

// IsBlogIndexExcluded reports whether a page must not appear in the
// blog feed built for sourcePage. Pass a zero ids.DocId when no
// specific blog-index task is in play (e.g. when computing the tag
// map, which has no single source page).
func IsBlogIndexExcluded(p model.Page, sourcePage ids.DocId) bool {
	if !p.Header.IsPublished {
		return true
	}
	if p.Header.ExcludeFromBlog {
		return true
	}
	if p.Header.ContentType == "info" {
		return true
	}
	if p.UrlPath == "index" {
		return true
	}
	switch p.Header.Template {
	case "BlogIndex", "Info", "Landing":
		return true
	}
	if p.Id == sourcePage {
		return true
	}
	return false
}

// ItemKind distinguishes a standalone post from a series in the blog
// feed.
type ItemKind int

const (
	ItemPost ItemKind = iota
	ItemSeries
)

// Item is one entry in the blog feed: exactly one of Post/Series is
// set, matching ItemKind.
type Item struct {
	Kind       ItemKind
	Post       *model.Page
	Series     *model.Series
	LogicalKey string
	SortDate   time.Time
}

func sortDatePage(p model.Page) time.Time {
	if p.Header.Published != nil {
		return *p.Header.Published
	}
	if p.Header.Updated != nil {
		return *p.Header.Updated
	}
	return time.Time{}
}

// IncludedParts returns a series' published parts, which is what the
// "included parts" language in spec §4.3 refers to.
func IncludedParts(s model.Series) []model.SeriesPart {
	var out []model.SeriesPart
	for _, p := range s.Parts {
		if p.Page.Header.IsPublished {
			out = append(out, p)
		}
	}
	return out
}

func sortDateSeries(s model.Series) time.Time {
	var max time.Time
	for _, p := range IncludedParts(s) {
		d := sortDatePage(p.Page)
		if d.After(max) {
			max = d
		}
	}
	return max
}

func seriesEligible(s model.Series, sourcePage ids.DocId) bool {
	if IsBlogIndexExcluded(s.Index, sourcePage) {
		return false
	}
	return len(IncludedParts(s)) > 0
}

// CollectBlogFeed builds the blog feed for a given source page
// (usually the blog-index page), applying visibility and ordering it
// descending by sort_date, ties broken ascending by logical key.
func CollectBlogFeed(content model.SiteContent, sourcePage ids.DocId) []Item {
	var items []Item
	for _, p := range content.Pages {
		if IsBlogIndexExcluded(p, sourcePage) {
			continue
		}
		page := p
		items = append(items, Item{
			Kind:       ItemPost,
			Post:       &page,
			LogicalKey: page.UrlPath,
			SortDate:   sortDatePage(page),
		})
	}
	for _, s := range content.Series {
		if !seriesEligible(s, sourcePage) {
			continue
		}
		series := s
		items = append(items, Item{
			Kind:       ItemSeries,
			Series:     &series,
			LogicalKey: series.Index.UrlPath,
			SortDate:   sortDateSeries(series),
		})
	}
	sortItems(items)
	return items
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.SortDate.Equal(b.SortDate) {
			return a.SortDate.After(b.SortDate) // descending
		}
		return a.LogicalKey < b.LogicalKey // ascending tie-break
	})
}

// LatestParts selects up to limit of a series' included parts,
// ordered descending by sort_date, tied broken ascending by logical
// key — spec §4.3's "Latest parts per series".
func LatestParts(s model.Series, limit int) []model.SeriesPart {
	parts := append([]model.SeriesPart(nil), IncludedParts(s)...)
	sort.Slice(parts, func(i, j int) bool {
		a, b := parts[i], parts[j]
		da, db := sortDatePage(a.Page), sortDatePage(b.Page)
		if !da.Equal(db) {
			return da.After(db)
		}
		return a.Page.UrlPath < b.Page.UrlPath
	})
	if limit > 0 && len(parts) > limit {
		parts = parts[:limit]
	}
	return parts
}

// TagMap canonicalizes every tag token across all published,
// blog-eligible pages (case-preserving first occurrence, matched
// case-insensitively), and returns pages sorted by source path per
// tag, plus a warning diagnostic for every case collision.
func TagMap(content model.SiteContent) (map[string][]model.Page, []model.Diagnostic) {
	canonical := make(map[string]string) // lowercase -> first-seen casing
	pagesByKey := make(map[string][]model.Page)
	var diags []model.Diagnostic

	var eligiblePages []model.Page
	for _, p := range content.Pages {
		if !IsBlogIndexExcluded(p, ids.DocId{}) {
			eligiblePages = append(eligiblePages, p)
		}
	}
	for _, s := range content.Series {
		if !IsBlogIndexExcluded(s.Index, ids.DocId{}) {
			eligiblePages = append(eligiblePages, s.Index)
		}
	}
	sort.Slice(eligiblePages, func(i, j int) bool {
		return eligiblePages[i].SourcePath < eligiblePages[j].SourcePath
	})

	for _, p := range eligiblePages {
		for _, tag := range p.Header.Tags {
			lower := lowerASCII(tag)
			seen, ok := canonical[lower]
			if !ok {
				canonical[lower] = tag
				seen = tag
			} else if seen != tag {
				diags = append(diags, model.Diagnostic{
					Level:      model.Warning,
					SourcePath: p.SourcePath,
					Message:    fmt.Sprintf("tag %q collides case-insensitively with %q; using %q", tag, seen, seen),
				})
			}
			pagesByKey[lower] = append(pagesByKey[lower], p)
		}
	}

	out := make(map[string][]model.Page, len(canonical))
	for lower, key := range canonical {
		pages := pagesByKey[lower]
		sort.Slice(pages, func(i, j int) bool { return pages[i].SourcePath < pages[j].SourcePath })
		out[key] = pages
	}
	return out, diags
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Range is one page of a paginated blog index.
type Range struct {
	Start, End           int
	PageNo, TotalPages   int
	PrevKey, NextKey     string
	LogicalKey           string
}

// Paginate splits n feed items into ceil(n/pageSize) ranges, page 1
// mapped to sourceLogicalKey, page k>1 mapped to
// "{sourceLogicalKey}/page/{k}" — spec §4.3's blog pagination.
func Paginate(n, pageSize int, sourceLogicalKey string) []Range {
	if pageSize <= 0 {
		pageSize = n
		if pageSize == 0 {
			pageSize = 1
		}
	}
	total := (n + pageSize - 1) / pageSize
	if total == 0 {
		total = 1
	}
	ranges := make([]Range, 0, total)
	for page := 1; page <= total; page++ {
		start := (page - 1) * pageSize
		end := start + pageSize
		if end > n {
			end = n
		}
		ranges = append(ranges, Range{
			Start:      start,
			End:        end,
			PageNo:     page,
			TotalPages: total,
			LogicalKey: PaginationKey(sourceLogicalKey, page),
		})
	}
	for i := range ranges {
		if i > 0 {
			ranges[i].PrevKey = ranges[i-1].LogicalKey
		}
		if i < len(ranges)-1 {
			ranges[i].NextKey = ranges[i+1].LogicalKey
		}
	}
	return ranges
}

// PaginationKey is the logical key a given blog-index page number maps
// to: page 1 is the source page itself, page k>1 is "source/page/k".
func PaginationKey(sourceLogicalKey string, pageNo int) string {
	if pageNo <= 1 {
		return sourceLogicalKey
	}
	if sourceLogicalKey == "" {
		return "page/" + strconv.Itoa(pageNo)
	}
	return sourceLogicalKey + "/page/" + strconv.Itoa(pageNo)
}
