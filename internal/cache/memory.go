package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter"
)

// MemoryStore implements Store in-process, backed by an otter cache with
// per-entry TTL. It is the substrate used when no Redis is configured
// (single-instance deployments) and in tests. Entries do not survive a
// process restart, which matches the best-effort cache contract.
type MemoryStore struct {
	cache otter.CacheWithVariableTTL[string, []byte]
}

// NewMemoryStore creates a MemoryStore bounded to maxEntries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	cache, err := otter.MustBuilder[string, []byte](maxEntries).
		Cost(func(_ string, _ []byte) uint32 { return 1 }).
		WithVariableTTL().
		Build()
	if err != nil {
		panic("cache: failed to create memory store: " + err.Error())
	}
	return &MemoryStore{cache: cache}
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	// Copy: otter retains the slice and callers may reuse their buffer.
	buf := make([]byte, len(value))
	copy(buf, value)
	s.cache.Set(key, buf, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return val, true, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
