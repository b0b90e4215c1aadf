// Package extract runs the external media extractor and parses its JSON
// output into categorized download formats.
package extract

import "context"

// Extractor resolves a source URL into raw extractor metadata.
type Extractor interface {
	Extract(ctx context.Context, sourceURL string) (*Info, error)
}

// Info mirrors the subset of extractor JSON output the gateway consumes.
// Unknown fields are ignored on decode.
type Info struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Fulltitle   string            `json:"fulltitle"`
	Description string            `json:"description"`
	Uploader    string            `json:"uploader"`
	UploaderID  string            `json:"uploader_id"`
	Channel     string            `json:"channel"`
	Extractor   string            `json:"extractor"`
	WebpageURL  string            `json:"webpage_url"`
	Duration    float64           `json:"duration"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	UploadDate  string            `json:"upload_date"`
	Thumbnail   string            `json:"thumbnail"`
	Thumbnails  []Thumbnail       `json:"thumbnails"`
	Formats     []RawFormat       `json:"formats"`
	Entries     []Info            `json:"entries"`
	Cookies     string            `json:"cookies"`
	HTTPHeaders map[string]string `json:"http_headers"`

	ViewCount    *int64 `json:"view_count"`
	LikeCount    *int64 `json:"like_count"`
	CommentCount *int64 `json:"comment_count"`
	RepostCount  *int64 `json:"repost_count"`
}

// Thumbnail is one preview image variant.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// RawFormat is one format entry as emitted by the extractor, before
// categorization.
type RawFormat struct {
	FormatID       string            `json:"format_id"`
	URL            string            `json:"url"`
	Vcodec         string            `json:"vcodec"`
	Acodec         string            `json:"acodec"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	Resolution     string            `json:"resolution"`
	VideoExt       string            `json:"video_ext"`
	Protocol       string            `json:"protocol"`
	ABR            float64           `json:"abr"`
	TBR            float64           `json:"tbr"`
	Filesize       *int64            `json:"filesize"`
	FilesizeApprox *int64            `json:"filesize_approx"`
	HTTPHeaders    map[string]string `json:"http_headers"`
}

// Format is a categorized, user-facing download variant.
type Format struct {
	Quality    string `json:"quality"`
	Resolution string `json:"resolution"`
	URL        string `json:"url"`
	SizeBytes  *int64 `json:"size_bytes,omitempty"`
	FormatID   string `json:"format_id"`
}

// MediaEntry is one item of a multi-media post (photo galleries, threads).
type MediaEntry struct {
	EntryID           string   `json:"entry_id"`
	Title             string   `json:"title,omitempty"`
	Thumbnail         string   `json:"thumbnail,omitempty"`
	Width             int      `json:"width,omitempty"`
	Height            int      `json:"height,omitempty"`
	DurationSeconds   float64  `json:"duration_seconds,omitempty"`
	DurationFormatted string   `json:"duration_formatted,omitempty"`
	MediaType         string   `json:"media_type"`
	Formats           []Format `json:"formats"`
	BestURL           string   `json:"best_url,omitempty"`
}

func (f RawFormat) size() *int64 {
	if f.Filesize != nil {
		return f.Filesize
	}
	return f.FilesizeApprox
}

// BestTitle prefers the short title over the full one.
func (i *Info) BestTitle() string {
	if i.Title != "" {
		return i.Title
	}
	return i.Fulltitle
}

// BestThumbnail picks the largest thumbnail by pixel area, falling back to
// the top-level thumbnail field.
func (i *Info) BestThumbnail() string {
	best := i.Thumbnail
	bestArea := 0
	for _, t := range i.Thumbnails {
		area := t.Width * t.Height
		if area > bestArea && t.URL != "" {
			best = t.URL
			bestArea = area
		}
	}
	if best == "" && len(i.Thumbnails) > 0 {
		best = i.Thumbnails[0].URL
	}
	return best
}

// AvatarURL returns the first thumbnail, which extractors populate with the
// author avatar for the supported platforms.
func (i *Info) AvatarURL() string {
	if len(i.Thumbnails) > 0 {
		return i.Thumbnails[0].URL
	}
	return ""
}
