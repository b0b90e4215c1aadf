package extract

import (
	"testing"
)

func int64p(v int64) *int64 { return &v }

func TestParseFormats_Categorization(t *testing.T) {
	raw := []RawFormat{
		{FormatID: "http-540", URL: "https://cdn.example/540.mp4", Protocol: "https", Vcodec: "h264", Acodec: "aac", Width: 540, Height: 960, Filesize: int64p(1000)},
		{FormatID: "http-720", URL: "https://cdn.example/720.mp4", Protocol: "https", Vcodec: "h264", Acodec: "aac", Width: 720, Height: 1280},
		{FormatID: "hls-1080", URL: "https://cdn.example/1080.m3u8", Protocol: "m3u8_native", Vcodec: "h264", Acodec: "none", Width: 1080, Height: 1920},
		{FormatID: "hls-audio-128000-Audio", URL: "https://cdn.example/audio.m3u8", Vcodec: "none", Acodec: "aac"},
		{FormatID: "orig", URL: "https://cdn.example/orig.jpg", Protocol: "https", VideoExt: "jpg", Width: 2048, Height: 1536},
		{FormatID: "thumb", URL: "https://cdn.example/thumb.jpg", Protocol: "https", VideoExt: "jpg", Width: 120, Height: 90},
		{FormatID: "no-url", Height: 480},
	}

	videos, audios, images := ParseFormats(raw)

	if len(videos) != 3 {
		t.Fatalf("videos: got %d, want 3", len(videos))
	}
	// Progressive variants lead regardless of height, each group sorted
	// by height descending.
	if videos[0].FormatID != "http-720" || videos[1].FormatID != "http-540" || videos[2].FormatID != "hls-1080" {
		t.Fatalf("video order: %v %v %v", videos[0].FormatID, videos[1].FormatID, videos[2].FormatID)
	}
	if videos[0].Quality != "720p (progressive)" || videos[2].Quality != "1080p (hls)" {
		t.Fatalf("quality labels: %q %q", videos[0].Quality, videos[2].Quality)
	}

	if len(audios) != 1 {
		t.Fatalf("audios: got %d, want 1", len(audios))
	}
	// Bitrate recovered from the format id when abr/tbr are absent.
	if audios[0].Quality != "128kbps" || audios[0].Resolution != "audio only" {
		t.Fatalf("audio: %+v", audios[0])
	}

	if len(images) != 2 {
		t.Fatalf("images: got %d, want 2", len(images))
	}
	if images[0].Quality != "ORIG" || images[1].Quality != "THUMB" {
		t.Fatalf("image order: %q %q", images[0].Quality, images[1].Quality)
	}
	if images[0].Resolution != "2048x1536" {
		t.Fatalf("image resolution: %q", images[0].Resolution)
	}
}

func TestParseFormats_DedupeByHeight(t *testing.T) {
	raw := []RawFormat{
		{FormatID: "a", URL: "https://cdn.example/a.mp4", Protocol: "https", Height: 720, Width: 720},
		{FormatID: "b", URL: "https://cdn.example/b.mp4", Protocol: "https", Height: 720, Width: 720},
	}
	videos, _, _ := ParseFormats(raw)
	if len(videos) != 1 || videos[0].FormatID != "a" {
		t.Fatalf("expected first 720p variant only, got %+v", videos)
	}
}

func TestParseEntries(t *testing.T) {
	entries := []Info{
		{
			ID: "photo-1",
			Formats: []RawFormat{
				{FormatID: "large", URL: "https://cdn.example/1-large.jpg", Protocol: "https", VideoExt: "jpg", Width: 1024, Height: 768},
			},
		},
		{
			Title:    "clip",
			Duration: 75,
			Formats: []RawFormat{
				{FormatID: "http-720", URL: "https://cdn.example/clip.mp4", Protocol: "https", Height: 1280, Width: 720},
			},
		},
	}
	parsed := ParseEntries(entries)
	if len(parsed) != 2 {
		t.Fatalf("entries: got %d", len(parsed))
	}
	if parsed[0].MediaType != "photo" || parsed[0].EntryID != "photo-1" {
		t.Fatalf("entry 0: %+v", parsed[0])
	}
	if parsed[1].MediaType != "video" || parsed[1].EntryID != "entry_1" {
		t.Fatalf("entry 1: %+v", parsed[1])
	}
	if parsed[1].DurationFormatted != "1:15" {
		t.Fatalf("duration: %q", parsed[1].DurationFormatted)
	}
	if parsed[1].BestURL != "https://cdn.example/clip.mp4" {
		t.Fatalf("best url: %q", parsed[1].BestURL)
	}
}

func TestDetectPlatform(t *testing.T) {
	cases := []struct {
		url, extractor, want string
	}{
		{"https://www.tiktok.com/@u/video/1", "TikTok", "tiktok"},
		{"https://vm.douyin.com/abc", "", "tiktok"},
		{"https://x.com/u/status/1", "", "x"},
		{"https://twitter.com/u/status/1", "", "x"},
		{"https://t.co/xyz", "twitter", "x"},
		{"https://example.com/v", "generic", "unknown"},
	}
	for _, c := range cases {
		if got := DetectPlatform(c.url, c.extractor); got != c.want {
			t.Errorf("DetectPlatform(%q, %q) = %q, want %q", c.url, c.extractor, got, c.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, ""},
		{9, "0:09"},
		{75, "1:15"},
		{3671, "1:01:11"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseUploadDate(t *testing.T) {
	if got := ParseUploadDate("20250817"); got != "2025-08-17" {
		t.Fatalf("got %q", got)
	}
	if got := ParseUploadDate("bogus"); got != "" {
		t.Fatalf("got %q for bogus input", got)
	}
}

func TestHeadersFor(t *testing.T) {
	info := &Info{HTTPHeaders: map[string]string{"User-Agent": "ua", "Cookie": "top"}}
	raw := &RawFormat{HTTPHeaders: map[string]string{"Referer": "https://example.com/"}}

	got := HeadersFor(raw, info)
	if len(got) != 1 || got["Referer"] == "" {
		t.Fatalf("format-level headers should win: %v", got)
	}

	got = HeadersFor(&RawFormat{}, info)
	if got["User-Agent"] != "ua" {
		t.Fatalf("expected fallback to info-level headers: %v", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := []struct {
		resolution, formatID, quality, want string
	}{
		{"audio only", "audio-0", "128kbps", "audio/mp4"},
		{"2048x1536", "orig", "ORIG", "image/jpeg"},
		{"120x90", "thumb", "THUMB", "image/jpeg"},
		{"720x1280", "http-720", "720p (progressive)", "video/mp4"},
	}
	for _, c := range cases {
		if got := ContentTypeFor(c.resolution, c.formatID, c.quality); got != c.want {
			t.Errorf("ContentTypeFor(%q, %q, %q) = %q, want %q", c.resolution, c.formatID, c.quality, got, c.want)
		}
	}
}
