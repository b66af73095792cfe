package media

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"stbl2/internal/ids"
	"stbl2/internal/model"
)

// ImagePlanInput indexes every image path referenced anywhere in the
// site, keyed by its logical "images/..." path.
type ImagePlanInput struct {
	Sources map[string]string   // path -> filesystem source path
	Hashes  map[string]ids.Hash // path -> source file content hash
	Alpha   map[string]bool     // path -> has-alpha, decided ahead of planning (spec §3 Project.image_alpha)
}

// formatsFor selects the output format family for a resized image:
// PNG/WebP(+AVIF) when the source carries alpha, JPEG/WebP(+AVIF)
// otherwise. format_mode=fast drops AVIF entirely, per the AVIF
// codec's unavailability (see DESIGN.md).
func formatsFor(hasAlpha bool, mode model.FormatMode) []model.ImageFormat {
	var formats []model.ImageFormat
	if hasAlpha {
		formats = []model.ImageFormat{model.FormatPng, model.FormatWebp}
	} else {
		formats = []model.ImageFormat{model.FormatJpeg, model.FormatWebp}
	}
	if mode == model.FormatModeNormal {
		formats = append(formats, model.FormatAvif)
	}
	return formats
}

func extFor(f model.ImageFormat) string {
	if f == model.FormatJpeg {
		return "jpg"
	}
	return f.String()
}

// VideoPlanInput is the video equivalent of ImagePlanInput.
type VideoPlanInput struct {
	Sources map[string]string
	Hashes  map[string]ids.Hash
}

// PlanImageTasks emits CopyImageOriginal plus one ResizeImage per
// (image, width) for every referenced image, skipping resize variants
// for SVGs (vector images are always copied, never rasterized).
func PlanImageTasks(images ImagePlanInput, widths []uint32, quality uint8, formatMode model.FormatMode, renderConfigHash ids.Hash) []model.BuildTask {
	var tasks []model.BuildTask

	paths := sortedKeys(images.Sources)
	sortedWidths := append([]uint32(nil), widths...)
	sort.Slice(sortedWidths, func(i, j int) bool { return sortedWidths[i] < sortedWidths[j] })

	for _, p := range paths {
		source := images.Sources[p]
		inputHash := images.Hashes[p]
		rel := strings.TrimPrefix(p, "images/")
		originalOut := fmt.Sprintf("artifacts/images/%s", rel)

		copyId := ids.NewTaskId("img_copy", p)
		tasks = append(tasks, model.BuildTask{
			Id:                copyId,
			Kind:              model.KindCopyImageOriginal,
			AssetSource:       source,
			AssetOutRel:       originalOut,
			InputsFingerprint: ids.NewFingerprint(copyId, model.KindCopyImageOriginal.String(), renderConfigHash, []ids.Hash{inputHash}),
			Inputs:            []model.ContentId{model.ContentImage(p)},
			Outputs:           []model.OutputArtifact{{Path: originalOut}},
		})

		if strings.HasSuffix(strings.ToLower(p), ".svg") {
			continue
		}
		relNoExt := strings.TrimSuffix(rel, path.Ext(rel))
		formats := formatsFor(images.Alpha[p], formatMode)
		for _, width := range sortedWidths {
			if width == 0 {
				continue
			}
			outBase := fmt.Sprintf("artifacts/images/_scale_%d/%s", width, relNoExt)
			id := ids.NewTaskId("img_scale", p, fmt.Sprintf("w=%d", width), fmt.Sprintf("q=%d", quality))
			outputs := make([]model.OutputArtifact, 0, len(formats))
			for _, f := range formats {
				outputs = append(outputs, model.OutputArtifact{Path: fmt.Sprintf("%s.%s", outBase, extFor(f))})
			}
			tasks = append(tasks, model.BuildTask{
				Id:                id,
				Kind:              model.KindResizeImage,
				AssetSource:       source,
				AssetOutRel:       outBase,
				Width:             width,
				Quality:           quality,
				Formats:           formats,
				InputsFingerprint: ids.NewFingerprint(id, model.KindResizeImage.String(), renderConfigHash, []ids.Hash{inputHash}),
				Inputs:            []model.ContentId{model.ContentImage(p)},
				Outputs:           outputs,
			})
		}
	}
	return tasks
}

// PlanVideoTasks emits CopyVideoOriginal, one ExtractVideoPoster, and
// one TranscodeVideoMp4 per (video, height) for every referenced
// video.
func PlanVideoTasks(videos VideoPlanInput, heights []uint32, posterTimeSec uint32, renderConfigHash ids.Hash) []model.BuildTask {
	var tasks []model.BuildTask

	paths := sortedKeys(videos.Sources)
	sortedHeights := append([]uint32(nil), heights...)
	sort.Slice(sortedHeights, func(i, j int) bool { return sortedHeights[i] < sortedHeights[j] })

	for _, p := range paths {
		source := videos.Sources[p]
		inputHash := videos.Hashes[p]
		rel := strings.TrimPrefix(p, "video/")
		originalOut := fmt.Sprintf("artifacts/video/%s", rel)

		copyId := ids.NewTaskId("vid_copy", p)
		tasks = append(tasks, model.BuildTask{
			Id:                copyId,
			Kind:              model.KindCopyVideoOriginal,
			AssetSource:       source,
			AssetOutRel:       originalOut,
			InputsFingerprint: ids.NewFingerprint(copyId, model.KindCopyVideoOriginal.String(), renderConfigHash, []ids.Hash{inputHash}),
			Inputs:            []model.ContentId{model.ContentVideo(p)},
			Outputs:           []model.OutputArtifact{{Path: originalOut}},
		})

		posterRel := posterOutputRel(rel)
		posterId := ids.NewTaskId("vid_poster", p, fmt.Sprintf("t=%d", posterTimeSec))
		tasks = append(tasks, model.BuildTask{
			Id:                posterId,
			Kind:              model.KindExtractVideoPoster,
			AssetSource:       source,
			AssetOutRel:       posterRel,
			PosterTimeSec:     posterTimeSec,
			InputsFingerprint: ids.NewFingerprint(posterId, model.KindExtractVideoPoster.String(), renderConfigHash, []ids.Hash{inputHash}),
			Inputs:            []model.ContentId{model.ContentVideo(p)},
			Outputs:           []model.OutputArtifact{{Path: posterRel}},
		})

		for _, height := range sortedHeights {
			if height == 0 {
				continue
			}
			outRel := fmt.Sprintf("artifacts/video/_scale_%d/%s", height, rel)
			id := ids.NewTaskId("vid_scale", p, fmt.Sprintf("h=%d", height))
			tasks = append(tasks, model.BuildTask{
				Id:                id,
				Kind:              model.KindTranscodeVideoMp4,
				AssetSource:       source,
				AssetOutRel:       outRel,
				Height:            height,
				InputsFingerprint: ids.NewFingerprint(id, model.KindTranscodeVideoMp4.String(), renderConfigHash, []ids.Hash{inputHash}),
				Inputs:            []model.ContentId{model.ContentVideo(p)},
				Outputs:           []model.OutputArtifact{{Path: outRel}},
			})
		}
	}
	return tasks
}

func posterOutputRel(rel string) string {
	ext := path.Ext(rel)
	stem := strings.TrimSuffix(path.Base(rel), ext)
	dir := path.Dir(rel)
	if dir == "." || dir == "" {
		return fmt.Sprintf("artifacts/video/_poster_/%s.jpg", stem)
	}
	return fmt.Sprintf("artifacts/video/_poster_/%s/%s.jpg", dir, stem)
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
