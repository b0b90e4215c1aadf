package slideshow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeDownloader struct {
	byURL map[string][]byte
	fail  string
}

func (f *fakeDownloader) Download(_ context.Context, url string) ([]byte, error) {
	if url == f.fail {
		return nil, os.ErrNotExist
	}
	return f.byURL[url], nil
}

type fakeRenderer struct {
	gotImages []string
	gotAudio  string
}

func (f *fakeRenderer) Render(_ context.Context, imagePaths []string, audioPath, outputPath string, _ time.Duration) error {
	f.gotImages = imagePaths
	f.gotAudio = audioPath
	return os.WriteFile(outputPath, []byte("mp4"), 0o644)
}

func TestRenderArgs(t *testing.T) {
	args := renderArgs([]string{"a.jpg", "b.jpg"}, "audio.mp3", "out.mp4", 4*time.Second)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-loop 1 -t 4 -i a.jpg",
		"-loop 1 -t 4 -i b.jpg",
		"-stream_loop -1 -i audio.mp3",
		"concat=n=2:v=1:a=0[vout]",
		"[2:a]atrim=0:8[aout]",
		"scale=w=1080:h=1920",
		"-c:v libx264",
		"-c:a aac",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q:\n%s", want, joined)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("output must be last arg, got %q", args[len(args)-1])
	}
}

func TestService_Create(t *testing.T) {
	dl := &fakeDownloader{byURL: map[string][]byte{
		"https://cdn.example/1.jpg":   []byte("img1"),
		"https://cdn.example/2.jpg":   []byte("img2"),
		"https://cdn.example/bgm.mp3": []byte("mp3"),
	}}
	renderer := &fakeRenderer{}
	svc := NewService(dl, renderer, t.TempDir())

	out, cleanup, err := svc.Create(context.Background(),
		[]string{"https://cdn.example/1.jpg", "https://cdn.example/2.jpg"},
		"https://cdn.example/bgm.mp3")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer cleanup()

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if len(renderer.gotImages) != 2 || renderer.gotAudio == "" {
		t.Fatalf("renderer inputs: %v %q", renderer.gotImages, renderer.gotAudio)
	}

	cleanup()
	if _, err := os.Stat(filepath.Dir(out)); !os.IsNotExist(err) {
		t.Fatal("cleanup must remove the workspace")
	}
}

func TestService_CreateFetchFailureCleansUp(t *testing.T) {
	tempDir := t.TempDir()
	dl := &fakeDownloader{
		byURL: map[string][]byte{"https://cdn.example/1.jpg": []byte("img")},
		fail:  "https://cdn.example/bgm.mp3",
	}
	svc := NewService(dl, &fakeRenderer{}, tempDir)

	_, _, err := svc.Create(context.Background(),
		[]string{"https://cdn.example/1.jpg"}, "https://cdn.example/bgm.mp3")
	if err == nil {
		t.Fatal("expected fetch failure")
	}
	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Fatalf("workspace left behind: %v", entries)
	}
}

func TestCleaner_Sweep(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "slideshow-old")
	newPath := filepath.Join(dir, "slideshow-new")
	os.MkdirAll(oldPath, 0o755)
	os.MkdirAll(newPath, 0o755)
	stale := time.Now().Add(-2 * time.Hour)
	os.Chtimes(oldPath, stale, stale)

	c, err := NewCleaner(dir, time.Hour, "*/15 * * * *")
	if err != nil {
		t.Fatalf("new cleaner: %v", err)
	}
	c.Sweep()

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatal("stale workspace must be removed")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatal("fresh workspace must survive")
	}
}

func TestCleaner_BadSchedule(t *testing.T) {
	if _, err := NewCleaner(t.TempDir(), time.Hour, "not a schedule"); err == nil {
		t.Fatal("expected schedule parse error")
	}
}
