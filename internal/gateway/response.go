package gateway

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/streamgate-proxy/streamgate/internal/extract"
)

// Stats carries engagement counters. Pointers distinguish "zero" from
// "not reported by the platform".
type Stats struct {
	Views    *int64 `json:"views,omitempty"`
	Likes    *int64 `json:"likes,omitempty"`
	Comments *int64 `json:"comments,omitempty"`
	Reposts  *int64 `json:"reposts,omitempty"`
}

// MediaData describes the extracted post itself.
type MediaData struct {
	Platform          string               `json:"platform"`
	ContentType       string               `json:"content_type"`
	VideoID           string               `json:"video_id"`
	Title             string               `json:"title"`
	Description       string               `json:"description,omitempty"`
	AuthorName        string               `json:"author_name,omitempty"`
	AuthorUsername    string               `json:"author_username,omitempty"`
	AuthorAvatar      string               `json:"author_avatar,omitempty"`
	Thumbnail         string               `json:"thumbnail,omitempty"`
	DurationSeconds   float64              `json:"duration_seconds,omitempty"`
	DurationFormatted string               `json:"duration_formatted,omitempty"`
	Stats             Stats                `json:"stats"`
	CreatedAt         string               `json:"created_at,omitempty"`
	OriginalURL       string               `json:"original_url"`
	IsPlaylist        bool                 `json:"is_playlist,omitempty"`
	PlaylistCount     int                  `json:"playlist_count,omitempty"`
	Entries           []extract.MediaEntry `json:"entries,omitempty"`
}

// ExtractResponse is the full payload returned by the extraction endpoint.
// Every format URL inside it points back at this gateway, never at the CDN.
type ExtractResponse struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Data          MediaData         `json:"data"`
	VideoFormats  []extract.Format  `json:"video_formats"`
	AudioFormats  []extract.Format  `json:"audio_formats"`
	ImageFormats  []extract.Format  `json:"image_formats"`
	BestVideoURL  string            `json:"best_video_url,omitempty"`
	BestAudioURL  string            `json:"best_audio_url,omitempty"`
	BestImageURL  string            `json:"best_image_url,omitempty"`
	DownloadLinks map[string]string `json:"download_links,omitempty"`
	SlideshowURL  string            `json:"slideshow_url,omitempty"`
	SessionID     string            `json:"session_id"`
	ExtractedAt   string            `json:"extracted_at"`
	CacheHit      bool              `json:"cache_hit"`
}

// downloadPayload is the plaintext carried inside a signed download token.
// Headers and Filesize capture the upstream auth context and known size at
// extraction time; the relay replays both.
type downloadPayload struct {
	URL      string            `json:"url"`
	Author   string            `json:"author"`
	Type     string            `json:"type"`
	Filesize *int64            `json:"filesize,omitempty"`
	Headers  map[string]string `json:"http_headers,omitempty"`
}

// streamURL builds the gateway-relative playback URL for a session format.
func (g *Gateway) streamURL(sessionID, formatID string) string {
	return g.baseURL + "/stream?id=" + url.QueryEscape(sessionID) +
		"&format=" + url.QueryEscape(formatID)
}

// downloadURL wraps a CDN URL in a signed, expiring token link.
func (g *Gateway) downloadURL(cdnURL, author, fileType string, size *int64, headers map[string]string) string {
	payload, err := json.Marshal(downloadPayload{
		URL:      cdnURL,
		Author:   author,
		Type:     fileType,
		Filesize: size,
		Headers:  headers,
	})
	if err != nil {
		return ""
	}
	tok := g.codec.Encode(string(payload), g.downloadTTL)
	return g.baseURL + "/download?data=" + url.QueryEscape(tok)
}

// maskFormats rewrites format URLs to gateway stream links in place.
func (g *Gateway) maskFormats(sessionID string, formats []extract.Format) {
	for i := range formats {
		formats[i].URL = g.streamURL(sessionID, formats[i].FormatID)
	}
}

// buildResponse assembles the client payload from parsed extractor output.
// The CDN URLs in downloadLinks come from the pre-mask formats; everything
// else is already rewritten to gateway links.
func (g *Gateway) buildResponse(info *extract.Info, sourceURL, sessionID string,
	videos, audios, images []extract.Format, entries []extract.MediaEntry) *ExtractResponse {

	author := firstNonEmpty(info.Uploader, info.Channel, info.UploaderID, info.ID)
	links := make(map[string]string)
	if len(videos) > 0 {
		links["video"] = g.downloadURL(videos[0].URL, author, "video", videos[0].SizeBytes, formatHeaders(info, videos[0].FormatID))
	}
	if len(audios) > 0 {
		links["mp3"] = g.downloadURL(audios[0].URL, author, "mp3", audios[0].SizeBytes, formatHeaders(info, audios[0].FormatID))
	}
	if len(images) > 0 {
		links["image"] = g.downloadURL(images[0].URL, author, "image", images[0].SizeBytes, formatHeaders(info, images[0].FormatID))
	}

	g.maskFormats(sessionID, videos)
	g.maskFormats(sessionID, audios)
	g.maskFormats(sessionID, images)
	for i := range entries {
		g.maskFormats(sessionID, entries[i].Formats)
		if len(entries[i].Formats) > 0 {
			entries[i].BestURL = entries[i].Formats[0].URL
		}
	}

	hasImages := len(images) > 0
	hasVideos := len(videos) > 0
	for _, e := range entries {
		switch e.MediaType {
		case "photo":
			hasImages = true
		case "video":
			hasVideos = true
		}
	}
	contentType, message := "video", "Video extracted successfully"
	if hasImages && !hasVideos {
		contentType, message = "photo", "Photo post extracted successfully"
	}
	isPlaylist := len(entries) > 0
	if isPlaylist {
		message = "Playlist extracted successfully"
	}

	resp := &ExtractResponse{
		Success: true,
		Message: message,
		Data: MediaData{
			Platform:          extract.DetectPlatform(sourceURL, info.Extractor),
			ContentType:       contentType,
			VideoID:           info.ID,
			Title:             info.BestTitle(),
			Description:       info.Description,
			AuthorName:        firstNonEmpty(info.Uploader, info.Channel),
			AuthorUsername:    info.UploaderID,
			AuthorAvatar:      info.AvatarURL(),
			Thumbnail:         info.BestThumbnail(),
			DurationSeconds:   info.Duration,
			DurationFormatted: extract.FormatDuration(info.Duration),
			Stats: Stats{
				Views:    info.ViewCount,
				Likes:    info.LikeCount,
				Comments: info.CommentCount,
				Reposts:  info.RepostCount,
			},
			CreatedAt:     extract.ParseUploadDate(info.UploadDate),
			OriginalURL:   sourceURL,
			IsPlaylist:    isPlaylist,
			PlaylistCount: len(entries),
			Entries:       entries,
		},
		VideoFormats:  videos,
		AudioFormats:  audios,
		ImageFormats:  images,
		DownloadLinks: links,
		SessionID:     sessionID,
		ExtractedAt:   g.now().UTC().Format(time.RFC3339),
	}
	if len(videos) > 0 {
		resp.BestVideoURL = g.streamURL(sessionID, "best")
	}
	if len(audios) > 0 {
		resp.BestAudioURL = g.streamURL(sessionID, "best_audio")
	}
	if hasImages {
		resp.BestImageURL = g.streamURL(sessionID, "best_image")
		resp.SlideshowURL = g.baseURL + "/download-slideshow?url=" +
			url.QueryEscape(g.codec.Encode(sourceURL, slideshowLinkTTL))
	}
	return resp
}

// formatHeaders looks up the captured request headers for a parsed format.
func formatHeaders(info *extract.Info, formatID string) map[string]string {
	return extract.HeadersFor(extract.FindRawFormat(info, formatID), info)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
