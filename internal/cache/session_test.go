package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newRedisSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(NewRedisStore(client), 300*time.Second), mr
}

func testRecord() SessionRecord {
	return SessionRecord{
		VideoID: "vid-1",
		Cookies: "sid=abc",
		Formats: map[string]FormatDescriptor{
			"http-720": {
				URL:         "https://cdn.example/720.mp4",
				HTTPHeaders: map[string]string{"Referer": "https://example.com/"},
				Quality:     "720p (progressive)",
				Resolution:  "720x1280",
				ContentType: "video/mp4",
			},
			"audio-128": {
				URL:         "https://cdn.example/audio.m4a",
				Quality:     "128kbps",
				Resolution:  "audio only",
				ContentType: "audio/mp4",
			},
		},
	}
}

func TestSessionStore_CreateGetRoundTrip(t *testing.T) {
	store, _ := newRedisSessionStore(t)
	ctx := context.Background()

	id := store.Create(ctx, testRecord())
	if id == "" {
		t.Fatal("expected non-empty session id")
	}

	rec, ok := store.Get(ctx, id)
	if !ok {
		t.Fatal("expected session to be readable immediately after create")
	}
	if rec.VideoID != "vid-1" || rec.Cookies != "sid=abc" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Formats) != 2 {
		t.Fatalf("formats: got %d, want 2", len(rec.Formats))
	}
}

func TestSessionStore_TTLExpiryReadsAsAbsent(t *testing.T) {
	store, mr := newRedisSessionStore(t)
	ctx := context.Background()

	id := store.Create(ctx, testRecord())
	mr.FastForward(301 * time.Second)

	if _, ok := store.Get(ctx, id); ok {
		t.Fatal("expected expired session to be indistinguishable from absent")
	}
}

func TestSessionStore_UnknownIDAbsent(t *testing.T) {
	store, _ := newRedisSessionStore(t)
	if _, ok := store.Get(context.Background(), "never-created"); ok {
		t.Fatal("expected absent for unknown id")
	}
}

func TestSessionStore_DistinctIDs(t *testing.T) {
	store, _ := newRedisSessionStore(t)
	ctx := context.Background()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := store.Create(ctx, testRecord())
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true
	}
}

func TestSessionStore_StoreOutageAbsorbed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewSessionStore(NewRedisStore(client), time.Minute)
	mr.Close()

	// Create must still hand back an id, and Get must read as absent.
	id := store.Create(context.Background(), testRecord())
	if id == "" {
		t.Fatal("expected id despite store outage")
	}
	if _, ok := store.Get(context.Background(), id); ok {
		t.Fatal("expected absent when store is unreachable")
	}
}

func TestResolveFormat(t *testing.T) {
	rec := testRecord()

	best, err := rec.ResolveFormat(FormatBest)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if best.Resolution == "audio only" {
		t.Fatalf("best resolved to audio descriptor: %+v", best)
	}

	audio, err := rec.ResolveFormat(FormatBestAudio)
	if err != nil {
		t.Fatalf("best_audio: %v", err)
	}
	if audio.Resolution != "audio only" {
		t.Fatalf("best_audio resolved to %+v", audio)
	}

	exact, err := rec.ResolveFormat("http-720")
	if err != nil {
		t.Fatalf("exact: %v", err)
	}
	if exact.URL != "https://cdn.example/720.mp4" {
		t.Fatalf("exact lookup returned %+v", exact)
	}

	if _, err := rec.ResolveFormat("nope"); !errors.Is(err, ErrFormatNotFound) {
		t.Fatalf("expected ErrFormatNotFound, got %v", err)
	}
}

func TestResolveFormat_BestImage(t *testing.T) {
	rec := SessionRecord{
		VideoID: "v",
		Formats: map[string]FormatDescriptor{
			"orig": {URL: "https://cdn.example/orig.jpg", Quality: "ORIG", Resolution: "2048x1536", ContentType: "image/jpeg"},
		},
	}
	img, err := rec.ResolveFormat(FormatBestImage)
	if err != nil {
		t.Fatalf("best_image: %v", err)
	}
	if img.ContentType != "image/jpeg" {
		t.Fatalf("got %+v", img)
	}
	// "best" admits any non-audio descriptor, so an image-only session
	// still resolves.
	best, err := rec.ResolveFormat(FormatBest)
	if err != nil {
		t.Fatalf("best in image-only session: %v", err)
	}
	if best.URL != "https://cdn.example/orig.jpg" {
		t.Fatalf("best resolved to %+v", best)
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore(128)
	ctx := context.Background()

	if err := store.Put(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	val, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(val) != "v" {
		t.Fatalf("got %q", val)
	}
	if _, ok, _ := store.Get(ctx, "missing"); ok {
		t.Fatal("expected absent")
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(128)
	ctx := context.Background()
	if err := store.Put(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}
