// Package slideshow turns photo posts into portrait videos: images are
// scaled onto a 1080x1920 canvas and concatenated over the post's audio.
package slideshow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultImageDuration is how long each image is shown.
const DefaultImageDuration = 4 * time.Second

// Renderer produces a slideshow video file from local assets.
type Renderer interface {
	Render(ctx context.Context, imagePaths []string, audioPath, outputPath string, perImage time.Duration) error
}

// FFmpegRenderer renders by shelling out to ffmpeg.
type FFmpegRenderer struct {
	Binary string
}

// NewFFmpegRenderer uses the ffmpeg binary from PATH.
func NewFFmpegRenderer() *FFmpegRenderer {
	return &FFmpegRenderer{Binary: "ffmpeg"}
}

// Render builds and runs the ffmpeg invocation. The output file is removed
// again when rendering fails partway.
func (r *FFmpegRenderer) Render(ctx context.Context, imagePaths []string, audioPath, outputPath string, perImage time.Duration) error {
	if len(imagePaths) == 0 {
		return fmt.Errorf("slideshow: no images")
	}
	if perImage <= 0 {
		perImage = DefaultImageDuration
	}

	binary := r.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	args := renderArgs(imagePaths, audioPath, outputPath, perImage)

	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("slideshow: ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("slideshow: output missing after render: %w", err)
	}
	return nil
}

// renderArgs assembles the ffmpeg argument list: each image looped for its
// display time, audio looped and trimmed to the video length, everything
// scaled and padded onto a portrait canvas.
func renderArgs(imagePaths []string, audioPath, outputPath string, perImage time.Duration) []string {
	seconds := int(perImage / time.Second)
	if seconds <= 0 {
		seconds = 1
	}

	args := []string{"-y"}
	for _, img := range imagePaths {
		args = append(args, "-loop", "1", "-t", strconv.Itoa(seconds), "-i", img)
	}
	args = append(args, "-stream_loop", "-1", "-i", audioPath)

	var filters []string
	for i := range imagePaths {
		filters = append(filters, fmt.Sprintf(
			"[%d:v]scale=w=1080:h=1920:force_original_aspect_ratio=decrease,"+
				"pad=1080:1920:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1[v%d]", i, i))
	}
	var concatIn strings.Builder
	for i := range imagePaths {
		fmt.Fprintf(&concatIn, "[v%d]", i)
	}
	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[vout]", concatIn.String(), len(imagePaths)))
	filters = append(filters, fmt.Sprintf("[%d:a]atrim=0:%d[aout]", len(imagePaths), len(imagePaths)*seconds))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[vout]",
		"-map", "[aout]",
		"-pix_fmt", "yuv420p",
		"-fps_mode", "cfr",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		outputPath,
	)
	return args
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
