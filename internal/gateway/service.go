// Package gateway orchestrates the extraction pipeline: cache lookup,
// extractor invocation, session capture and link building. It owns the
// mapping from extractor output to the client-facing response and from
// opaque links back to upstream requests.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/streamgate-proxy/streamgate/internal/cache"
	"github.com/streamgate-proxy/streamgate/internal/extract"
	"github.com/streamgate-proxy/streamgate/internal/proxy"
	"github.com/streamgate-proxy/streamgate/internal/token"
)

// DefaultExtractionTimeout bounds one extractor run.
const DefaultExtractionTimeout = 45 * time.Second

// slideshowLinkTTL bounds how long a slideshow link stays valid. Slideshow
// rendering re-extracts the post, so the link outliving the session is fine.
const slideshowLinkTTL = 360 * time.Second

type downloadContentType struct{ mime, ext string }

// downloadContentTypes maps token file types to MIME type and extension.
// Unrecognized types download as opaque binaries.
var downloadContentTypes = map[string]downloadContentType{
	"mp3":   {"audio/mpeg", "mp3"},
	"audio": {"audio/mpeg", "mp3"},
	"video": {"video/mp4", "mp4"},
	"image": {"image/jpeg", "jpg"},
}

var downloadContentTypeFallback = downloadContentType{"application/octet-stream", "bin"}

// Config wires a Gateway. Extractor, Metadata, Sessions and Codec are
// required; the rest has working defaults.
type Config struct {
	Extractor         extract.Extractor
	Metadata          *cache.MetadataStore
	Sessions          *cache.SessionStore
	Codec             *token.Codec
	BaseURL           string
	ExtractionTimeout time.Duration
	DownloadLinkTTL   time.Duration
	SupportedDomains  []string

	// OnBlock fires when the upstream platform signals a block. Wired to
	// the VPN fleet's failover in production.
	OnBlock func()
}

type flight struct {
	done chan struct{}
	info *extract.Info
	err  error
}

// Gateway is safe for concurrent use.
type Gateway struct {
	extractor         extract.Extractor
	metadata          *cache.MetadataStore
	sessions          *cache.SessionStore
	codec             *token.Codec
	baseURL           string
	extractionTimeout time.Duration
	downloadTTL       time.Duration
	supportedDomains  []string
	onBlock           func()

	inflight *xsync.Map[string, *flight]
	now      func() time.Time
}

// New builds a Gateway from cfg.
func New(cfg Config) *Gateway {
	timeout := cfg.ExtractionTimeout
	if timeout <= 0 {
		timeout = DefaultExtractionTimeout
	}
	return &Gateway{
		extractor:         cfg.Extractor,
		metadata:          cfg.Metadata,
		sessions:          cfg.Sessions,
		codec:             cfg.Codec,
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		extractionTimeout: timeout,
		downloadTTL:       cfg.DownloadLinkTTL,
		supportedDomains:  cfg.SupportedDomains,
		onBlock:           cfg.OnBlock,
		inflight:          xsync.NewMap[string, *flight](),
		now:               time.Now,
	}
}

// Extract resolves a source URL into the full client response. Concurrent
// requests for the same URL share one extractor run.
func (g *Gateway) Extract(ctx context.Context, sourceURL string) (*ExtractResponse, *ServiceError) {
	sourceURL = cache.NormalizeSourceURL(sourceURL)
	if sourceURL == "" {
		return nil, ErrMissingURL
	}
	if !g.supported(sourceURL) {
		return nil, ErrUnsupportedURL
	}

	info, cacheHit, err := g.resolveInfo(ctx, sourceURL)
	if err != nil {
		se := mapExtractError(err)
		if se.Code == "FORBIDDEN" {
			g.NotifyBlock()
		}
		return nil, se
	}

	videos, audios, images := extract.ParseFormats(info.Formats)
	entries := extract.ParseEntries(info.Entries)
	rec := buildSessionRecord(info, videos, audios, images)
	sessionID := g.sessions.Create(ctx, rec)

	resp := g.buildResponse(info, sourceURL, sessionID, videos, audios, images, entries)
	resp.CacheHit = cacheHit
	return resp, nil
}

// ResolveSession turns a session id and format id into an upstream request
// carrying the captured auth context. An empty format id means "best".
func (g *Gateway) ResolveSession(ctx context.Context, id, formatID string) (proxy.Request, *ServiceError) {
	if formatID == "" {
		formatID = cache.FormatBest
	}
	rec, ok := g.sessions.Get(ctx, id)
	if !ok {
		return proxy.Request{}, ErrSessionExpired
	}
	desc, err := rec.ResolveFormat(formatID)
	if err != nil {
		return proxy.Request{}, FormatNotFound(formatID)
	}
	return proxy.Request{
		URL:         desc.URL,
		Headers:     desc.HTTPHeaders,
		Cookies:     rec.Cookies,
		ContentType: desc.ContentType,
		Filename:    proxy.Filename(rec.VideoID, formatID, desc.Quality, desc.ContentType),
	}, nil
}

// ResolveToken decodes a signed download token into an upstream request.
func (g *Gateway) ResolveToken(data string) (proxy.Request, *ServiceError) {
	if data == "" {
		return proxy.Request{}, ErrInvalidToken
	}
	plain, err := g.codec.Decode(data)
	if err != nil {
		return proxy.Request{}, mapTokenError(err)
	}
	var p downloadPayload
	if err := json.Unmarshal([]byte(plain), &p); err != nil {
		return proxy.Request{}, ErrInvalidPayload
	}
	if p.Author == "" || p.Type == "" {
		return proxy.Request{}, ErrInvalidPayload
	}
	ct, ok := downloadContentTypes[p.Type]
	if !ok {
		ct = downloadContentTypeFallback
	}
	if p.URL == "" {
		return proxy.Request{}, ErrMissingDownloadURL
	}
	req := proxy.Request{
		URL:         p.URL,
		Headers:     p.Headers,
		ContentType: ct.mime,
		Filename:    sanitizeFilename(p.Author) + "." + ct.ext,
	}
	if p.Filesize != nil {
		req.Size = *p.Filesize
	}
	return req, nil
}

// SlideshowAssets decodes a slideshow link and re-resolves the post into
// the image and audio URLs needed for rendering. Photo posts arrive as
// entry lists; one image per entry goes into the slideshow.
func (g *Gateway) SlideshowAssets(ctx context.Context, tok string) (imageURLs []string, audioURL string, serr *ServiceError) {
	if tok == "" {
		return nil, "", ErrInvalidToken
	}
	sourceURL, err := g.codec.Decode(tok)
	if err != nil {
		return nil, "", mapTokenError(err)
	}
	info, _, exErr := g.resolveInfo(ctx, cache.NormalizeSourceURL(sourceURL))
	if exErr != nil {
		return nil, "", mapExtractError(exErr)
	}

	_, audios, images := extract.ParseFormats(info.Formats)
	if len(info.Entries) > 0 {
		for i := range info.Entries {
			_, _, entryImages := extract.ParseFormats(info.Entries[i].Formats)
			if len(entryImages) > 0 {
				imageURLs = append(imageURLs, entryImages[0].URL)
			}
		}
	} else if len(images) > 0 {
		imageURLs = append(imageURLs, images[0].URL)
	}
	if len(audios) > 0 {
		audioURL = audios[0].URL
	}
	if len(imageURLs) == 0 || audioURL == "" {
		return nil, "", ErrNoSlideshowAssets
	}
	return imageURLs, audioURL, nil
}

// NotifyBlock fires the block handler without holding up the caller.
func (g *Gateway) NotifyBlock() {
	if g.onBlock != nil {
		go g.onBlock()
	}
}

// resolveInfo serves from the metadata cache when possible and otherwise
// runs the extractor, coalescing concurrent misses on the same URL into a
// single run.
func (g *Gateway) resolveInfo(ctx context.Context, sourceURL string) (*extract.Info, bool, error) {
	if raw, ok := g.metadata.Get(ctx, sourceURL); ok {
		var info extract.Info
		if err := json.Unmarshal(raw, &info); err == nil {
			return &info, true, nil
		}
		log.Printf("gateway: corrupt metadata cache entry for %s, re-extracting", sourceURL)
	}

	key := cache.MetadataKey(sourceURL)
	f := &flight{done: make(chan struct{})}
	existing, loaded := g.inflight.LoadOrStore(key, f)
	if loaded {
		select {
		case <-existing.done:
			return existing.info, false, existing.err
		case <-ctx.Done():
			return nil, false, &extract.Error{Kind: extract.KindTimeout, Detail: ctx.Err().Error()}
		}
	}
	defer func() {
		g.inflight.Delete(key)
		close(f.done)
	}()

	exCtx, cancel := context.WithTimeout(ctx, g.extractionTimeout)
	defer cancel()
	f.info, f.err = g.extractor.Extract(exCtx, sourceURL)
	if f.err == nil {
		if raw, err := json.Marshal(f.info); err == nil {
			g.metadata.Put(ctx, sourceURL, raw)
		}
	}
	return f.info, false, f.err
}

// supported reports whether the URL's host matches the configured domain
// allowlist. An empty allowlist admits everything.
func (g *Gateway) supported(sourceURL string) bool {
	if len(g.supportedDomains) == 0 {
		return true
	}
	u, err := url.Parse(sourceURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range g.supportedDomains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// buildSessionRecord captures every downloadable format with its auth
// headers, including image formats nested inside playlist entries. First
// registration wins on format id collisions across entries.
func buildSessionRecord(info *extract.Info, videos, audios, images []extract.Format) cache.SessionRecord {
	rec := cache.SessionRecord{
		VideoID: info.ID,
		Cookies: info.Cookies,
		Formats: make(map[string]cache.FormatDescriptor),
	}
	add := func(src *extract.Info, f extract.Format, contentType string) {
		if _, exists := rec.Formats[f.FormatID]; exists {
			return
		}
		raw := extract.FindRawFormat(src, f.FormatID)
		if raw == nil {
			return
		}
		rec.Formats[f.FormatID] = cache.FormatDescriptor{
			URL:         raw.URL,
			HTTPHeaders: extract.HeadersFor(raw, src),
			Quality:     f.Quality,
			Resolution:  f.Resolution,
			ContentType: contentType,
		}
	}
	addAll := func(src *extract.Info, videos, audios, images []extract.Format) {
		for _, f := range videos {
			add(src, f, "video/mp4")
		}
		for _, f := range audios {
			add(src, f, "audio/mp4")
		}
		for _, f := range images {
			add(src, f, "image/jpeg")
		}
	}
	addAll(info, videos, audios, images)
	for i := range info.Entries {
		entry := &info.Entries[i]
		entryVideos, entryAudios, entryImages := extract.ParseFormats(entry.Formats)
		addAll(entry, entryVideos, entryAudios, entryImages)
	}
	return rec
}

// sanitizeFilename keeps ASCII alphanumerics and maps everything else to an
// underscore, so the author name is filesystem and header safe.
func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "download"
	}
	return b.String()
}
