package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// DefaultBinary is the extractor executable resolved from PATH.
const DefaultBinary = "yt-dlp"

// CommandExtractor shells out to the extractor binary with JSON output.
// One process per extraction; the context deadline bounds the whole run.
type CommandExtractor struct {
	Binary     string
	ExtraArgs  []string
	Classifier *Classifier
}

// NewCommandExtractor builds a CommandExtractor with the default binary.
func NewCommandExtractor(classifier *Classifier) *CommandExtractor {
	if classifier == nil {
		classifier = &Classifier{}
	}
	return &CommandExtractor{Binary: DefaultBinary, Classifier: classifier}
}

// Extract runs the extractor and decodes its JSON dump. Extraction never
// downloads media, it only resolves metadata and CDN URLs.
func (e *CommandExtractor) Extract(ctx context.Context, sourceURL string) (*Info, error) {
	binary := e.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	args := []string{"--dump-single-json", "--no-warnings", "--socket-timeout", "30"}
	args = append(args, e.ExtraArgs...)
	args = append(args, sourceURL)

	start := time.Now()
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, &Error{Kind: KindTimeout, Detail: ctx.Err().Error()}
	}
	if err != nil {
		detail := stderr.String()
		if detail == "" {
			detail = err.Error()
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Binary missing or unrunnable, not an extractor verdict.
			return nil, fmt.Errorf("extract: run %s: %w", binary, err)
		}
		return nil, e.Classifier.Classify(detail)
	}

	var info Info
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("extract: decode output for %s: %w", sourceURL, err)
	}
	log.Printf("extract: %s resolved in %s (%d formats, %d entries)",
		sourceURL, time.Since(start).Round(time.Millisecond), len(info.Formats), len(info.Entries))
	return &info, nil
}
