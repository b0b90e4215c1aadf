package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// DefaultMetadataTTL is deliberately short: CDN URLs inside extractor output
// go stale quickly, so the cache trades hit rate for staleness risk.
const DefaultMetadataTTL = 3 * time.Minute

const metadataKeyPrefix = "meta:"

// MetadataStore caches raw extractor output keyed by a stable hash of the
// normalized source URL.
type MetadataStore struct {
	store Store
	ttl   time.Duration
}

// NewMetadataStore creates a MetadataStore over the given substrate.
// ttl <= 0 falls back to DefaultMetadataTTL.
func NewMetadataStore(store Store, ttl time.Duration) *MetadataStore {
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	return &MetadataStore{store: store, ttl: ttl}
}

// MetadataKey returns the cache key for a source URL: xxh3-128 of the
// normalized URL, hex encoded.
func MetadataKey(sourceURL string) string {
	normalized := NormalizeSourceURL(sourceURL)
	sum := xxh3.Hash128([]byte(normalized))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], sum.Hi)
	binary.BigEndian.PutUint64(buf[8:], sum.Lo)
	return metadataKeyPrefix + hex.EncodeToString(buf[:])
}

// NormalizeSourceURL trims whitespace and drops any fragment so trivially
// different spellings of the same share link hit the same entry.
func NormalizeSourceURL(sourceURL string) string {
	s := strings.TrimSpace(sourceURL)
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		s = s[:idx]
	}
	return s
}

// Put stores raw extractor output. Failures are logged and absorbed; a
// missed write only costs a re-extraction later.
func (s *MetadataStore) Put(ctx context.Context, sourceURL string, raw []byte) {
	if err := s.store.Put(ctx, MetadataKey(sourceURL), raw, s.ttl); err != nil {
		log.Printf("metadata store: put %s: %v", MetadataKey(sourceURL), err)
	}
}

// Get returns cached extractor output, or ok=false when absent for any
// reason (missing, expired, store unreachable).
func (s *MetadataStore) Get(ctx context.Context, sourceURL string) ([]byte, bool) {
	raw, ok, err := s.store.Get(ctx, MetadataKey(sourceURL))
	if err != nil {
		log.Printf("metadata store: get %s: %v", MetadataKey(sourceURL), err)
		return nil, false
	}
	return raw, ok
}
