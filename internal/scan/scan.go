// Package scan implements the filesystem-facing discovery pass spec.md
// leaves to an external collaborator: it walks a project's articles
// tree into model.DiscoveredDocs ready for internal/assemble, and
// resolves every media.MediaRef collected off assembled pages into the
// media.ImagePlanInput/media.VideoPlanInput the plan builder needs.
// It mirrors the teacher's afero.Walk-over-"content" discovery pass in
// builder/run/pipeline_posts.go, generalized to classify series
// directories instead of a flat post list.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"stbl2/internal/header"
	"stbl2/internal/ids"
	"stbl2/internal/media"
	"stbl2/internal/model"
	"stbl2/internal/plan"
)

// seriesIndexName is the filename that turns a directory into a
// series: every other .md file alongside it becomes a series part
// instead of a standalone page.
const seriesIndexName = "_index.md"

// Documents walks fsys under root and returns every discovered
// document, classified into a standalone page, a series index, or a
// series part.
func Documents(fsys afero.Fs, root string) ([]model.DiscoveredDoc, error) {
	type dirInfo struct{ hasIndex bool }
	dirs := make(map[string]*dirInfo)

	var files []string
	err := afero.Walk(fsys, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, ".md") {
			return nil
		}
		dir := path.Dir(p)
		d, ok := dirs[dir]
		if !ok {
			d = &dirInfo{}
			dirs[dir] = d
		}
		if path.Base(p) == seriesIndexName {
			d.hasIndex = true
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walk %s: %w", root, err)
	}
	sort.Strings(files)

	docs := make([]model.DiscoveredDoc, 0, len(files))
	for _, p := range files {
		raw, err := afero.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("scan: read %s: %w", p, err)
		}
		info, err := fsys.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scan: stat %s: %w", p, err)
		}

		hdr, body, present := header.Parse(string(raw))
		parsed := model.ParsedDoc{
			Src: model.SourceDoc{
				SourcePath: p,
				DirPath:    path.Dir(p),
				FileName:   path.Base(p),
				Raw:        string(raw),
			},
			Header:        hdr,
			BodyMarkdown:  body,
			HeaderPresent: present,
			ModTime:       info.ModTime(),
		}

		dir := path.Dir(p)
		switch {
		case path.Base(p) == seriesIndexName:
			docs = append(docs, model.DiscoveredDoc{Parsed: parsed, Kind: model.DocSeriesIndex, SeriesDir: dir})
		case dirs[dir].hasIndex:
			docs = append(docs, model.DiscoveredDoc{Parsed: parsed, Kind: model.DocSeriesPart, SeriesDir: dir})
		default:
			docs = append(docs, model.DiscoveredDoc{Parsed: parsed, Kind: model.DocPage})
		}
	}
	return docs, nil
}

// MediaInputs resolves every media.MediaRef collected across content's
// pages against assetsRoot on the real filesystem, hashing each
// referenced source file and, for images, decoding it once to detect
// an alpha channel. Media sources are always read from the OS
// filesystem, matching the codec layer's own os.Open-based I/O (see
// DESIGN.md's note on the executor's OS-vs-injectable-Fs split).
func MediaInputs(assetsRoot string, content model.SiteContent) (media.ImagePlanInput, media.VideoPlanInput, error) {
	images := media.ImagePlanInput{Sources: map[string]string{}, Hashes: map[string]ids.Hash{}, Alpha: map[string]bool{}}
	videos := media.VideoPlanInput{Sources: map[string]string{}, Hashes: map[string]ids.Hash{}}
	codec := media.ImageCodec{}

	visit := func(refs []model.MediaRef) error {
		for _, ref := range refs {
			source := path.Join(assetsRoot, ref.Path)
			switch ref.Kind {
			case model.MediaImage:
				if _, ok := images.Sources[ref.Path]; ok {
					continue
				}
				data, err := os.ReadFile(source)
				if err != nil {
					return fmt.Errorf("scan: read image %s: %w", source, err)
				}
				images.Sources[ref.Path] = source
				images.Hashes[ref.Path] = ids.HashBytes(data)
				images.Alpha[ref.Path] = detectAlpha(codec, source)

			case model.MediaVideo:
				if _, ok := videos.Sources[ref.Path]; ok {
					continue
				}
				data, err := os.ReadFile(source)
				if err != nil {
					return fmt.Errorf("scan: read video %s: %w", source, err)
				}
				videos.Sources[ref.Path] = source
				videos.Hashes[ref.Path] = ids.HashBytes(data)
			}
		}
		return nil
	}

	for _, p := range content.Pages {
		if err := visit(p.MediaRefs); err != nil {
			return images, videos, err
		}
	}
	for _, s := range content.Series {
		if err := visit(s.Index.MediaRefs); err != nil {
			return images, videos, err
		}
		for _, part := range s.Parts {
			if err := visit(part.Page.MediaRefs); err != nil {
				return images, videos, err
			}
		}
	}
	return images, videos, nil
}

// StaticAssets walks the static-assets root on fsys and maps each file
// to the output path it is copied to verbatim under outPrefix,
// mirroring the teacher's copyStaticAndBuildAssets pass
// (builder/run/pipeline_assets.go), minus the esbuild bundling step
// this engine's CopyAsset task does not perform.
func StaticAssets(fsys afero.Fs, root, outPrefix string) (map[string]plan.AssetRef, error) {
	out := make(map[string]plan.AssetRef)
	exists, err := afero.DirExists(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("scan: stat static root %s: %w", root, err)
	}
	if !exists {
		return out, nil
	}

	err = afero.Walk(fsys, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("scan: read asset %s: %w", p, err)
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		out[path.Join(outPrefix, rel)] = plan.AssetRef{Source: p, Hash: ids.HashBytes(data)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// detectAlpha decodes source to check for an alpha channel. SVGs (and
// any other source the codec cannot decode, e.g. not yet downloaded
// media in a partial checkout) are treated as opaque: PlanImageTasks
// never resizes an SVG anyway, so its alpha value is never consulted.
func detectAlpha(codec media.ImageCodec, source string) bool {
	img, err := codec.Decode(source)
	if err != nil {
		return false
	}
	return codec.HasAlpha(img)
}
