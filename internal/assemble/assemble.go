// Package assemble turns a flat list of discovered documents into a
// SiteContent: pages, series (index + ordered parts), and any
// diagnostics raised while doing so. No filesystem I/O happens here —
// assemble consumes already-parsed documents.
package assemble

import (
	"fmt"
	"sort"

	"stbl2/internal/ids"
	"stbl2/internal/media"
	"stbl2/internal/model"
)

// ErrAssemblyFailed is returned when assembly produced at least one
// error-level diagnostic; the SiteContent is still returned so the
// caller can report every diagnostic, not just the first.
var ErrAssemblyFailed = fmt.Errorf("assembly failed: see diagnostics")

// Assemble implements spec §4.2's algorithm.
func Assemble(docs []model.DiscoveredDoc) (model.SiteContent, error) {
	var content model.SiteContent

	type seriesCandidate struct {
		dirPath string
		index   *model.Page
		// parts is kept in discovery order; duplicate part_no winners
		// are picked by source path in detectDuplicatePartNumbers.
		parts []model.SeriesPart
	}
	candidates := make(map[string]*seriesCandidate)
	order := make([]string, 0)

	getCandidate := func(dir string) *seriesCandidate {
		c, ok := candidates[dir]
		if !ok {
			c = &seriesCandidate{dirPath: dir}
			candidates[dir] = c
			order = append(order, dir)
		}
		return c
	}

	for _, doc := range docs {
		page := buildPage(doc)

		switch doc.Kind {
		case model.DocPage:
			content.Pages = append(content.Pages, page)
		case model.DocSeriesIndex:
			c := getCandidate(doc.SeriesDir)
			idx := page
			c.index = &idx
		case model.DocSeriesPart:
			c := getCandidate(doc.SeriesDir)
			if doc.Parsed.Header.Part == nil {
				content.Diagnostics = append(content.Diagnostics, model.Diagnostic{
					Level:      model.Error,
					SourcePath: doc.Parsed.Src.SourcePath,
					Message:    "series part is missing a valid integer 'part' header field",
				})
				continue
			}
			c.parts = append(c.parts, model.SeriesPart{
				PartNo: *doc.Parsed.Header.Part,
				Page:   page,
			})
		}
	}

	for _, dir := range order {
		c := candidates[dir]
		validParts, dup := detectDuplicatePartNumbers(c.parts)
		for _, d := range dup {
			content.Diagnostics = append(content.Diagnostics, d)
		}

		if c.index == nil {
			// Parts with no index fall back to plain pages.
			for _, p := range validParts {
				content.Pages = append(content.Pages, p.Page)
			}
			continue
		}
		if len(validParts) == 0 {
			// An index with zero valid parts does not materialize a
			// series; the index itself still stands as a plain page.
			content.Pages = append(content.Pages, *c.index)
			continue
		}

		sort.Slice(validParts, func(i, j int) bool { return validParts[i].PartNo < validParts[j].PartNo })
		content.Series = append(content.Series, model.Series{
			Id:      ids.HashSeries(dir),
			DirPath: dir,
			Index:   *c.index,
			Parts:   validParts,
		})
	}

	for _, d := range content.Diagnostics {
		if d.Level == model.Error {
			return content, ErrAssemblyFailed
		}
	}
	return content, nil
}

// detectDuplicatePartNumbers partitions parts into those with a
// unique part_no within the directory and diagnostics for every part
// number that collided. The winner of a collision is the part with
// the lexicographically smallest source path (deterministic); every
// losing part, and the winner, are both named in the diagnostic.
func detectDuplicatePartNumbers(parts []model.SeriesPart) ([]model.SeriesPart, []model.Diagnostic) {
	byNo := make(map[int][]model.SeriesPart)
	for _, p := range parts {
		byNo[p.PartNo] = append(byNo[p.PartNo], p)
	}

	nos := make([]int, 0, len(byNo))
	for no := range byNo {
		nos = append(nos, no)
	}
	sort.Ints(nos)

	var valid []model.SeriesPart
	var diags []model.Diagnostic
	for _, no := range nos {
		group := byNo[no]
		if len(group) == 1 {
			valid = append(valid, group[0])
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].Page.SourcePath < group[j].Page.SourcePath
		})
		var names []string
		for _, g := range group {
			names = append(names, g.Page.SourcePath)
		}
		// A duplicate part_no is an error for the whole group: no
		// part in it is materialized into the series. The diagnostic
		// still names a deterministic "winner" (the lexicographically
		// first source path) purely so repeated runs report the
		// collision identically.
		diags = append(diags, model.Diagnostic{
			Level:      model.Error,
			SourcePath: group[0].Page.SourcePath,
			Message:    fmt.Sprintf("duplicate part_no=%d among: %v", no, names),
		})
	}
	return valid, diags
}

func buildPage(doc model.DiscoveredDoc) model.Page {
	sourcePath := doc.Parsed.Src.SourcePath
	return model.Page{
		Id:           ids.HashDoc(sourcePath),
		SourcePath:   sourcePath,
		Header:       doc.Parsed.Header,
		BodyMarkdown: doc.Parsed.BodyMarkdown,
		BannerName:   doc.Parsed.Header.Banner,
		MediaRefs:    media.CollectRefs(doc.Parsed.BodyMarkdown),
		UrlPath:      model.LogicalKeyFromSourcePath(sourcePath),
		ContentHash:  ContentHash(doc.Parsed.Header, doc.Parsed.BodyMarkdown),
	}
}

// ContentHash computes a Page's content_hash as a pure function of
// its normalized header and body, per spec §3's Page invariant.
func ContentHash(hdr model.Header, body string) ids.ContentHash {
	b := ids.NewBuilder("stbl2.content.v1").
		Str(hdr.Title).
		StrSeq(sortedCopy(hdr.Tags)).
		Str(hdr.Template).
		Str(hdr.ContentType).
		Str(hdr.AbstractText).
		Str(hdr.Banner)
	if hdr.Part != nil {
		b.U64(uint64(*hdr.Part))
	}
	b.Str(body)
	return ids.ContentHash(b.Finish())
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
