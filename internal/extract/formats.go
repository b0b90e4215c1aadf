package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var audioBitrateRe = regexp.MustCompile(`audio-(\d+)`)

var imagePriority = map[string]int{
	"orig":   0,
	"large":  1,
	"medium": 2,
	"small":  3,
	"thumb":  4,
}

// ParseFormats categorizes raw extractor formats into video, audio and
// image lists. Videos come back progressive-first, then HLS, both sorted by
// height descending. Audio sorts by bitrate descending and images by the
// platform's size label (orig before large before thumb).
func ParseFormats(raw []RawFormat) (videos, audios, images []Format) {
	var progressive, hlsVideos []Format

	seenVideo := make(map[string]bool)
	seenAudio := make(map[string]bool)
	seenProgressive := make(map[int]bool)
	seenImage := make(map[string]bool)

	for _, f := range raw {
		if f.URL == "" {
			continue
		}
		vcodec := strings.ToLower(defaultStr(f.Vcodec, "none"))
		videoExt := strings.ToLower(f.VideoExt)
		urlLower := strings.ToLower(f.URL)

		isHTTP := f.Protocol == "https" || (strings.HasPrefix(f.URL, "http") && !strings.Contains(f.URL, ".m3u8"))
		isHLS := strings.Contains(urlLower, ".m3u8") || f.Protocol == "m3u8" || f.Protocol == "m3u8_native"

		isImage := isHTTP && isImageExt(videoExt)
		isAudio := vcodec == "none" &&
			(strings.Contains(strings.ToLower(f.FormatID), "audio") || f.Resolution == "audio only")
		isCombined := isHTTP && f.Height > 0 && !isImage
		isVideoOnly := isHLS && vcodec != "none" && f.Height > 0

		switch {
		case isImage:
			key := fmt.Sprintf("%dx%d_%s", f.Width, f.Height, f.FormatID)
			if seenImage[key] {
				continue
			}
			seenImage[key] = true
			label := "IMAGE"
			if f.FormatID != "" {
				label = strings.ToUpper(f.FormatID)
			}
			images = append(images, Format{
				Quality:    label,
				Resolution: resolutionString(f),
				URL:        f.URL,
				SizeBytes:  f.size(),
				FormatID:   f.FormatID,
			})

		case isAudio:
			abr := f.ABR
			if abr == 0 {
				abr = f.TBR
			}
			if abr == 0 {
				// Some platforms only encode the bitrate into the id,
				// e.g. "hls-audio-128000-Audio".
				if m := audioBitrateRe.FindStringSubmatch(strings.ToLower(f.FormatID)); m != nil {
					if bps, err := strconv.Atoi(m[1]); err == nil {
						abr = float64(bps / 1000)
					}
				}
			}
			quality := "audio"
			if abr > 0 {
				quality = fmt.Sprintf("%dkbps", int(abr))
			}
			if seenAudio[quality] {
				continue
			}
			seenAudio[quality] = true
			audios = append(audios, Format{
				Quality:    quality,
				Resolution: "audio only",
				URL:        f.URL,
				SizeBytes:  f.size(),
				FormatID:   f.FormatID,
			})

		case isCombined:
			if seenProgressive[f.Height] {
				continue
			}
			seenProgressive[f.Height] = true
			progressive = append(progressive, Format{
				Quality:    fmt.Sprintf("%dp (progressive)", f.Height),
				Resolution: resolutionString(f),
				URL:        f.URL,
				SizeBytes:  f.size(),
				FormatID:   f.FormatID,
			})

		case isVideoOnly:
			key := fmt.Sprintf("%d_hls", f.Height)
			if seenVideo[key] {
				continue
			}
			seenVideo[key] = true
			hlsVideos = append(hlsVideos, Format{
				Quality:    fmt.Sprintf("%dp (hls)", f.Height),
				Resolution: resolutionString(f),
				URL:        f.URL,
				SizeBytes:  f.size(),
				FormatID:   f.FormatID,
			})
		}
	}

	sort.SliceStable(progressive, func(i, j int) bool {
		return qualityHeight(progressive[i]) > qualityHeight(progressive[j])
	})
	sort.SliceStable(hlsVideos, func(i, j int) bool {
		return qualityHeight(hlsVideos[i]) > qualityHeight(hlsVideos[j])
	})
	videos = append(progressive, hlsVideos...)

	sort.SliceStable(audios, func(i, j int) bool {
		return qualityBitrate(audios[i]) > qualityBitrate(audios[j])
	})
	sort.SliceStable(images, func(i, j int) bool {
		return imageRank(images[i]) < imageRank(images[j])
	})
	return videos, audios, images
}

// ParseEntries categorizes each entry of a multi-media post.
func ParseEntries(entries []Info) []MediaEntry {
	out := make([]MediaEntry, 0, len(entries))
	for idx, entry := range entries {
		videos, audios, images := ParseFormats(entry.Formats)

		var mediaType, bestURL string
		var formats []Format
		switch {
		case len(images) > 0 && len(videos) == 0:
			mediaType, bestURL, formats = "photo", images[0].URL, images
		case len(videos) > 0:
			mediaType, bestURL, formats = "video", videos[0].URL, videos
		case len(audios) > 0:
			mediaType, bestURL, formats = "audio", audios[0].URL, audios
		default:
			mediaType = "unknown"
		}

		thumbnail := entry.Thumbnail
		if thumbnail == "" && len(entry.Thumbnails) > 0 {
			thumbnail = entry.Thumbnails[0].URL
		}
		entryID := entry.ID
		if entryID == "" {
			entryID = fmt.Sprintf("entry_%d", idx)
		}

		out = append(out, MediaEntry{
			EntryID:           entryID,
			Title:             entry.BestTitle(),
			Thumbnail:         thumbnail,
			Width:             entry.Width,
			Height:            entry.Height,
			DurationSeconds:   entry.Duration,
			DurationFormatted: FormatDuration(entry.Duration),
			MediaType:         mediaType,
			Formats:           formats,
			BestURL:           bestURL,
		})
	}
	return out
}

// DetectPlatform names the source platform from URL and extractor hints.
func DetectPlatform(sourceURL, extractor string) string {
	urlLower := strings.ToLower(sourceURL)
	extLower := strings.ToLower(extractor)
	switch {
	case strings.Contains(urlLower, "tiktok.com") || strings.Contains(urlLower, "douyin.com"):
		return "tiktok"
	case strings.Contains(urlLower, "twitter.com") || strings.Contains(urlLower, "x.com") ||
		strings.Contains(extLower, "twitter"):
		return "x"
	default:
		return "unknown"
	}
}

// FormatDuration renders seconds as M:SS or H:MM:SS. Zero or negative
// durations render empty.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ParseUploadDate converts the extractor's YYYYMMDD stamp into ISO form.
func ParseUploadDate(date string) string {
	if len(date) != 8 {
		return ""
	}
	for _, r := range date {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return date[:4] + "-" + date[4:6] + "-" + date[6:8]
}

// HeadersFor returns the auth headers to replay against the CDN for a given
// format: format-level headers when present, else the top-level ones.
func HeadersFor(raw *RawFormat, info *Info) map[string]string {
	src := info.HTTPHeaders
	if raw != nil && len(raw.HTTPHeaders) > 0 {
		src = raw.HTTPHeaders
	}
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// FindRawFormat locates the raw format entry for a format id, searching
// top-level formats and entry formats.
func FindRawFormat(info *Info, formatID string) *RawFormat {
	for i := range info.Formats {
		if info.Formats[i].FormatID == formatID {
			return &info.Formats[i]
		}
	}
	for e := range info.Entries {
		for i := range info.Entries[e].Formats {
			if info.Entries[e].Formats[i].FormatID == formatID {
				return &info.Entries[e].Formats[i]
			}
		}
	}
	return nil
}

// ContentTypeFor infers the MIME type a format will stream as.
func ContentTypeFor(resolution, formatID, quality string) string {
	switch {
	case resolution == "audio only":
		return "audio/mp4"
	case strings.Contains(quality, "IMAGE") || strings.Contains(strings.ToLower(formatID), "thumb") || imagePriorityKnown(quality):
		return "image/jpeg"
	default:
		return "video/mp4"
	}
}

func imagePriorityKnown(quality string) bool {
	_, ok := imagePriority[strings.ToLower(quality)]
	return ok
}

func isImageExt(ext string) bool {
	switch ext {
	case "jpg", "jpeg", "png", "webp", "gif":
		return true
	}
	return false
}

func resolutionString(f RawFormat) string {
	if f.Width > 0 && f.Height > 0 {
		return fmt.Sprintf("%dx%d", f.Width, f.Height)
	}
	return f.Resolution
}

func qualityHeight(f Format) int {
	idx := strings.IndexByte(f.Quality, 'p')
	if idx <= 0 {
		return 0
	}
	h, err := strconv.Atoi(f.Quality[:idx])
	if err != nil {
		return 0
	}
	return h
}

func qualityBitrate(f Format) int {
	b, err := strconv.Atoi(strings.TrimSuffix(f.Quality, "kbps"))
	if err != nil {
		return 0
	}
	return b
}

func imageRank(f Format) int {
	if rank, ok := imagePriority[strings.ToLower(f.Quality)]; ok {
		return rank
	}
	return 5
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
