package media

import (
	"testing"

	"stbl2/internal/model"
)

func TestParseDestinationImageBanner(t *testing.T) {
	ref, ok := ParseDestination("images/hero.jpg;banner;40%", "Hero image")
	if !ok {
		t.Fatalf("expected image ref to parse")
	}
	if ref.Kind != model.MediaImage || ref.Path != "images/hero.jpg" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	if len(ref.ImgAttrs) != 2 || !ref.ImgAttrs[0].Banner || ref.ImgAttrs[1].WidthPercent != 40 {
		t.Fatalf("unexpected attrs: %+v", ref.ImgAttrs)
	}
}

func TestParseDestinationVideoPrefer(t *testing.T) {
	ref, ok := ParseDestination("video/intro.mp4;p1080", "Intro")
	if !ok {
		t.Fatalf("expected video ref to parse")
	}
	if ref.PreferP != 1080 {
		t.Fatalf("PreferP = %d, want 1080", ref.PreferP)
	}
}

func TestParseDestinationVideoDefaultPrefer(t *testing.T) {
	ref, ok := ParseDestination("video/intro.mp4", "Intro")
	if !ok || ref.PreferP != 720 {
		t.Fatalf("expected default prefer_p=720, got %+v", ref)
	}
}

func TestParseDestinationInvalidPreferPIgnored(t *testing.T) {
	ref, ok := ParseDestination("video/intro.mp4;p999", "Intro")
	if !ok {
		t.Fatalf("expected video ref to parse")
	}
	if ref.PreferP != 720 {
		t.Fatalf("invalid prefer_p should fall back to default 720, got %d", ref.PreferP)
	}
}

func TestParseDestinationNonMediaIgnored(t *testing.T) {
	_, ok := ParseDestination("https://example.com/pic.png", "alt")
	if ok {
		t.Fatalf("non images/video destinations must be rejected")
	}
}

func TestCollectRefsFromMarkdown(t *testing.T) {
	md := "intro\n\n![A banner](images/banner.jpg;banner)\n\nmore text ![clip](video/clip.mp4;p480) end"
	refs := CollectRefs(md)
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d: %+v", len(refs), refs)
	}
	if refs[0].Kind != model.MediaImage || refs[1].Kind != model.MediaVideo {
		t.Fatalf("unexpected kinds: %+v", refs)
	}
}
