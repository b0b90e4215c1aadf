package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a session's format map stays resolvable.
const DefaultSessionTTL = 300 * time.Second

const sessionKeyPrefix = "download:"

// Sentinel format ids accepted by ResolveFormat.
const (
	FormatBest      = "best"
	FormatBestAudio = "best_audio"
	FormatBestImage = "best_image"
)

// ErrFormatNotFound indicates the session exists but carries no descriptor
// for the requested format id.
var ErrFormatNotFound = errors.New("cache: format not found in session")

// FormatDescriptor is one concrete downloadable variant of a media item,
// with the upstream auth headers captured at extraction time.
type FormatDescriptor struct {
	URL         string            `json:"url"`
	HTTPHeaders map[string]string `json:"http_headers,omitempty"`
	Quality     string            `json:"quality"`
	Resolution  string            `json:"resolution"`
	ContentType string            `json:"content_type"`
}

// SessionRecord maps format ids to resolved descriptors for one extraction.
// Written once at creation; never patched.
type SessionRecord struct {
	VideoID string                      `json:"video_id"`
	Cookies string                      `json:"cookies,omitempty"`
	Formats map[string]FormatDescriptor `json:"formats"`
}

// ResolveFormat selects a descriptor by id. The sentinel ids pick the first
// descriptor of the matching content category: "best" any non-audio variant,
// "best_audio" an audio-only variant, "best_image" an image variant.
func (r SessionRecord) ResolveFormat(formatID string) (FormatDescriptor, error) {
	switch formatID {
	case FormatBest:
		for _, f := range r.Formats {
			if f.Resolution != "" && f.Resolution != "audio only" {
				return f, nil
			}
		}
	case FormatBestAudio:
		for _, f := range r.Formats {
			if f.Resolution == "audio only" {
				return f, nil
			}
		}
	case FormatBestImage:
		for _, f := range r.Formats {
			if strings.HasPrefix(f.ContentType, "image/") {
				return f, nil
			}
		}
	default:
		if f, ok := r.Formats[formatID]; ok {
			return f, nil
		}
	}
	return FormatDescriptor{}, ErrFormatNotFound
}

// SessionStore persists SessionRecords under random identifiers.
type SessionStore struct {
	store Store
	ttl   time.Duration
}

// NewSessionStore creates a SessionStore over the given substrate.
// ttl <= 0 falls back to DefaultSessionTTL.
func NewSessionStore(store Store, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{store: store, ttl: ttl}
}

// TTL returns the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create stores the record under a fresh random id and returns the id.
// UUIDv4 carries 122 bits of entropy, which is the guessing-resistance
// floor for ids that gate access to session cookies.
//
// Store failures are logged and absorbed: the extraction response is still
// useful, its session links will simply report the session as gone.
func (s *SessionStore) Create(ctx context.Context, rec SessionRecord) string {
	id := uuid.NewString()
	buf, err := json.Marshal(rec)
	if err != nil {
		log.Printf("session store: marshal session for video %s: %v", rec.VideoID, err)
		return id
	}
	if err := s.store.Put(ctx, sessionKeyPrefix+id, buf, s.ttl); err != nil {
		log.Printf("session store: put session %s: %v", id, err)
	}
	return id
}

// Get loads a session. ok=false covers never-existed, expired and
// store-unreachable alike.
func (s *SessionStore) Get(ctx context.Context, id string) (SessionRecord, bool) {
	buf, ok, err := s.store.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		log.Printf("session store: get session %s: %v", id, err)
		return SessionRecord{}, false
	}
	if !ok {
		return SessionRecord{}, false
	}
	var rec SessionRecord
	if err := json.Unmarshal(buf, &rec); err != nil {
		log.Printf("session store: corrupt session %s: %v", id, err)
		return SessionRecord{}, false
	}
	return rec, true
}
