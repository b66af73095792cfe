// Package media implements media-reference parsing from markdown
// image syntax, media task planning, and the image/video codec
// adapters the executor calls into for Phase B work.
package media

import (
	"strconv"
	"strings"

	"stbl2/internal/model"
)

var validPreferP = map[int]bool{360: true, 480: true, 720: true, 1080: true, 1440: true, 2160: true}

// ParseDestination parses one markdown image destination + alt text
// into a MediaRef, or returns ok=false when the destination is
// neither an "images/" nor a "video/" path.
func ParseDestination(dest, alt string) (model.MediaRef, bool) {
	parts := strings.Split(dest, ";")
	path := strings.TrimSpace(parts[0])
	rest := parts[1:]

	switch {
	case strings.HasPrefix(path, "images/"):
		ref := model.MediaRef{Kind: model.MediaImage, Path: path, Alt: alt}
		for _, raw := range rest {
			attr := strings.TrimSpace(raw)
			if attr == "" {
				continue
			}
			if strings.EqualFold(attr, "banner") {
				ref.ImgAttrs = append(ref.ImgAttrs, model.ImageAttr{Banner: true})
				continue
			}
			if strings.HasSuffix(attr, "%") {
				if v, err := strconv.Atoi(strings.TrimSuffix(attr, "%")); err == nil && v >= 1 && v <= 100 {
					ref.ImgAttrs = append(ref.ImgAttrs, model.ImageAttr{WidthPercent: v})
					continue
				}
			}
			ref.ImgAttrs = append(ref.ImgAttrs, model.ImageAttr{Unknown: attr})
		}
		return ref, true

	case strings.HasPrefix(path, "video/"):
		ref := model.MediaRef{Kind: model.MediaVideo, Path: path, Alt: alt, PreferP: 720}
		for _, raw := range rest {
			attr := strings.TrimSpace(raw)
			if attr == "" {
				continue
			}
			if v, ok := parsePreferP(attr); ok {
				ref.PreferP = v
				ref.VidAttrs = append(ref.VidAttrs, model.VideoAttr{PreferP: v})
				continue
			}
			ref.VidAttrs = append(ref.VidAttrs, model.VideoAttr{Unknown: attr})
		}
		return ref, true

	default:
		return model.MediaRef{}, false
	}
}

func parsePreferP(attr string) (int, bool) {
	if !strings.HasPrefix(attr, "p") {
		return 0, false
	}
	n, err := strconv.Atoi(attr[1:])
	if err != nil || !validPreferP[n] {
		return 0, false
	}
	return n, true
}

// CollectRefs extracts every media reference from raw markdown image
// syntax of the form `![alt](dest)`. It is a small, self-contained
// scanner rather than a full markdown parser: the engine's media-ref
// extraction does not need block structure, only image destinations,
// matching the scope boundary in spec §1 (full markdown rendering is
// an external collaborator's job).
func CollectRefs(markdown string) []model.MediaRef {
	var refs []model.MediaRef
	i := 0
	for i < len(markdown) {
		bang := strings.Index(markdown[i:], "![")
		if bang < 0 {
			break
		}
		start := i + bang
		altEnd := strings.Index(markdown[start+2:], "]")
		if altEnd < 0 {
			break
		}
		altEnd += start + 2
		if altEnd+1 >= len(markdown) || markdown[altEnd+1] != '(' {
			i = altEnd + 1
			continue
		}
		destEnd := strings.Index(markdown[altEnd+2:], ")")
		if destEnd < 0 {
			break
		}
		destEnd += altEnd + 2
		alt := markdown[start+2 : altEnd]
		dest := markdown[altEnd+2 : destEnd]
		if ref, ok := ParseDestination(dest, alt); ok {
			refs = append(refs, ref)
		}
		i = destEnd + 1
	}
	return refs
}
