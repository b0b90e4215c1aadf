package proxy

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultStreamTimeout bounds one full relay, not a single read. Media
// bodies run to hundreds of megabytes, so this is minutes, not seconds.
const DefaultStreamTimeout = 300 * time.Second

// DefaultBlockStatuses are the upstream statuses treated as egress blocks.
var DefaultBlockStatuses = map[int]bool{
	http.StatusForbidden:       true,
	http.StatusTooManyRequests: true,
}

// Request describes one relay: the resolved CDN URL plus the auth context
// captured at extraction time.
type Request struct {
	URL string
	// Headers are replayed verbatim, except any cookie header: cookies are
	// session-scoped and attached separately via Cookies.
	Headers map[string]string
	Cookies string
	// ContentType is the fallback when the origin omits its own.
	ContentType string
	Filename    string
	// Size is the media size captured at extraction time; zero means
	// unknown. A known size wins over the origin's Content-Length.
	Size int64
}

// Streamer relays media bodies from origin CDNs to clients.
type Streamer struct {
	client        *http.Client
	blockStatuses map[int]bool
}

// NewStreamer builds a Streamer. A nil client gets a default with
// DefaultStreamTimeout; nil blockStatuses gets DefaultBlockStatuses.
func NewStreamer(client *http.Client, blockStatuses map[int]bool) *Streamer {
	if client == nil {
		client = &http.Client{Timeout: DefaultStreamTimeout}
	}
	if blockStatuses == nil {
		blockStatuses = DefaultBlockStatuses
	}
	return &Streamer{client: client, blockStatuses: blockStatuses}
}

// Stream fetches req.URL with the captured auth context and relays the body
// to w incrementally. A non-nil return means nothing was written yet and the
// caller may still render an error response (with ErrClientGone there is
// nobody left to render it to). Failures after the first byte are logged
// and absorbed: the status line is already on the wire.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, req Request) *Error {
	upReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, req.URL, nil)
	if err != nil {
		log.Printf("proxy: bad upstream url: %v", err)
		return ErrInternal
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "cookie") {
			continue
		}
		upReq.Header.Set(k, v)
	}
	// Compressed bodies would break range math and content-length hints.
	upReq.Header.Set("Accept-Encoding", "identity")
	if req.Cookies != "" {
		upReq.Header.Set("Cookie", req.Cookies)
	}
	if rng := r.Header.Get("Range"); rng != "" {
		upReq.Header.Set("Range", rng)
	}

	resp, err := s.client.Do(upReq)
	if err != nil {
		pe := classifyTransportError(err)
		if pe != ErrClientGone {
			log.Printf("proxy: upstream fetch %s: %v", req.URL, err)
		}
		return pe
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, s.blockStatuses)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = req.ContentType
	}
	w.Header().Set("Content-Type", contentType)
	// Range responses keep the origin's length math.
	cl := resp.ContentLength
	if req.Size > 0 && resp.StatusCode == http.StatusOK {
		cl = req.Size
	}
	if cl > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(cl, 10))
	}
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		w.Header().Set("Content-Range", cr)
	}
	if req.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.Filename))
		w.Header().Set("X-Filename", req.Filename)
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("proxy: relay %s interrupted: %v", req.URL, err)
	}
	return nil
}

// Filename derives a download filename from session identifiers and the
// effective content type. Quality labels get sanitized to filesystem-safe
// characters.
func Filename(videoID, formatID, quality, contentType string) string {
	return fmt.Sprintf("%s_%s_%s.%s", videoID, formatID, sanitize(quality), ExtensionFor(contentType))
}

// ExtensionFor picks a file extension for a MIME type.
func ExtensionFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return "m4a"
	case strings.HasPrefix(contentType, "image/"):
		return "jpg"
	default:
		return "mp4"
	}
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
