package slideshow

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/streamgate-proxy/streamgate/internal/netutil"
)

// Service downloads a photo post's assets into a scratch workspace and
// renders them into a slideshow video.
type Service struct {
	downloader netutil.Downloader
	renderer   Renderer
	tempDir    string
	perImage   time.Duration
}

// NewService wires a slideshow service. tempDir is created on demand.
func NewService(downloader netutil.Downloader, renderer Renderer, tempDir string) *Service {
	return &Service{
		downloader: downloader,
		renderer:   renderer,
		tempDir:    tempDir,
		perImage:   DefaultImageDuration,
	}
}

// Create fetches the remote assets and renders the video. It returns the
// output path plus a cleanup func that removes the whole workspace; the
// caller runs it after streaming the file out.
func (s *Service) Create(ctx context.Context, imageURLs []string, audioURL string) (string, func(), error) {
	if len(imageURLs) == 0 {
		return "", nil, fmt.Errorf("slideshow: no image urls")
	}
	if audioURL == "" {
		return "", nil, fmt.Errorf("slideshow: no audio url")
	}

	workspace := filepath.Join(s.tempDir, "slideshow-"+uuid.NewString())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", nil, fmt.Errorf("slideshow: workspace: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(workspace); err != nil {
			log.Printf("slideshow: cleanup %s: %v", workspace, err)
		}
	}

	imagePaths := make([]string, len(imageURLs))
	for i, u := range imageURLs {
		path := filepath.Join(workspace, fmt.Sprintf("image_%03d.jpg", i))
		if err := netutil.DownloadToFile(ctx, s.downloader, u, path); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("slideshow: fetch image %d: %w", i, err)
		}
		imagePaths[i] = path
	}
	audioPath := filepath.Join(workspace, "audio.mp3")
	if err := netutil.DownloadToFile(ctx, s.downloader, audioURL, audioPath); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("slideshow: fetch audio: %w", err)
	}

	outputPath := filepath.Join(workspace, "slideshow.mp4")
	if err := s.renderer.Render(ctx, imagePaths, audioPath, outputPath, s.perImage); err != nil {
		cleanup()
		return "", nil, err
	}
	return outputPath, cleanup, nil
}
