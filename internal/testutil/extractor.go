package testutil

import (
	"context"
	"sync/atomic"

	"github.com/streamgate-proxy/streamgate/internal/extract"
)

// FakeExtractor returns canned metadata or a canned error. Calls counts
// invocations so tests can assert on cache hits and request coalescing.
type FakeExtractor struct {
	Info  *extract.Info
	Err   error
	Delay chan struct{} // when non-nil, Extract blocks until it is closed

	Calls atomic.Int64
}

func (f *FakeExtractor) Extract(ctx context.Context, sourceURL string) (*extract.Info, error) {
	f.Calls.Add(1)
	if f.Delay != nil {
		select {
		case <-f.Delay:
		case <-ctx.Done():
			return nil, &extract.Error{Kind: extract.KindTimeout, Detail: ctx.Err().Error()}
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	info := *f.Info
	return &info, nil
}

// TikTokInfo builds a representative extraction result for tests: one
// progressive video, one HLS rendition and one audio track.
func TikTokInfo() *extract.Info {
	size := int64(2 << 20)
	views := int64(1200)
	likes := int64(340)
	return &extract.Info{
		ID:         "7301234567890",
		Title:      "test clip",
		Uploader:   "Some Author",
		UploaderID: "someauthor",
		Extractor:  "TikTok",
		WebpageURL: "https://www.tiktok.com/@someauthor/video/7301234567890",
		Duration:   42,
		UploadDate: "20250817",
		Thumbnail:  "https://cdn.example/thumb.jpg",
		Cookies:    "tt_session=abc",
		ViewCount:  &views,
		LikeCount:  &likes,
		HTTPHeaders: map[string]string{
			"User-Agent": "Mozilla/5.0",
			"Referer":    "https://www.tiktok.com/",
		},
		Formats: []extract.RawFormat{
			{FormatID: "http-720", URL: "https://cdn.example/720.mp4", Protocol: "https", Vcodec: "h264", Acodec: "aac", Width: 720, Height: 1280, Filesize: &size},
			{FormatID: "hls-1080", URL: "https://cdn.example/1080.m3u8", Protocol: "m3u8_native", Vcodec: "h264", Acodec: "none", Width: 1080, Height: 1920},
			{FormatID: "hls-audio-128000-Audio", URL: "https://cdn.example/audio.m3u8", Vcodec: "none", Acodec: "aac"},
		},
	}
}
