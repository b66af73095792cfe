package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"stbl2/internal/model"
)

// ImageCodec implements the decode/resize/encode collaborator named
// in spec §6: decode_image, resize_exact(Lanczos3), and encode as
// Jpeg(q=84) | Png | Webp(lossless) | Avif(speed=4,q=50).
type ImageCodec struct{}

// Decode opens and decodes an image file.
func (ImageCodec) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// HasAlpha reports whether the image has an alpha channel in use (at
// least one pixel that is not fully opaque), used to skip lossy JPEG
// output and choose the PNG/WebP/AVIF family instead.
func (ImageCodec) HasAlpha(img image.Image) bool {
	switch img.ColorModel() {
	case image.NRGBAModel, image.RGBAModel, image.NRGBA64Model, image.RGBA64Model:
		bounds := img.Bounds()
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// ErrAvifUnavailable is returned by ResizeAndEncode for
// model.FormatAvif: no AVIF encoder library is wired into this build
// (see DESIGN.md). The executor skips that one output with a warning
// and still writes the task's other formats.
var ErrAvifUnavailable = fmt.Errorf("avif encoding unavailable: no AVIF encoder wired in this build")

// ResizeAndEncode resizes img to width (skipping the resize when the
// source is already narrower than or equal to the target, per spec
// §4.4) and encodes it in the requested format.
func (c ImageCodec) ResizeAndEncode(img image.Image, width int, quality uint8, format model.ImageFormat) ([]byte, error) {
	out := img
	if width > 0 && img.Bounds().Dx() > width {
		out = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	if format == model.FormatJpeg && c.HasAlpha(out) {
		return nil, fmt.Errorf("jpeg format skipped: source has an alpha channel")
	}

	var buf bytes.Buffer
	switch format {
	case model.FormatJpeg:
		if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 84}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case model.FormatPng:
		if err := png.Encode(&buf, out); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case model.FormatWebp:
		if err := webp.Encode(&buf, out, &webp.Options{Lossless: true}); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	case model.FormatAvif:
		return nil, ErrAvifUnavailable
	default:
		return nil, fmt.Errorf("unknown image format %v", format)
	}
	return buf.Bytes(), nil
}

// CopyOriginal copies a source file byte-for-byte to dest.
func CopyOriginal(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open source %s: %w", source, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create dest %s: %w", dest, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", source, dest, err)
	}
	return nil
}

// VideoCodec invokes ffmpeg as an external process for transcoding and
// poster extraction, per spec §6.
type VideoCodec struct{}

// TranscodeMp4 transcodes source to an MP4 at dest, scaled to height
// (preserving aspect ratio) when height > 0.
func (VideoCodec) TranscodeMp4(ctx context.Context, source, dest string, height uint32) error {
	args := []string{"-y", "-i", source}
	if height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", height))
	}
	args = append(args,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		dest,
	)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg transcode %s: %w", source, err)
	}
	return nil
}

// ExtractPoster grabs a single frame at timeSec seconds and writes it
// as a JPEG poster image.
func (VideoCodec) ExtractPoster(ctx context.Context, source, dest string, timeSec uint32) error {
	args := []string{
		"-y",
		"-ss", strconv.FormatUint(uint64(timeSec), 10),
		"-i", source,
		"-frames:v", "1",
		dest,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg poster %s: %w", source, err)
	}
	return nil
}
