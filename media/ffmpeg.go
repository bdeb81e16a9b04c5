// Package media wraps the ffprobe/ffmpeg binaries used to measure a
// recording and cut it into chunk files.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maastricht-university/speaker-stitch/stitch"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Tool holds binary paths and output format for chunk extraction.
type Tool struct {
	FFmpeg     string
	FFprobe    string
	SampleRate int
	Channels   int

	run Runner
}

// New returns a Tool running the real binaries. Empty paths fall back to
// "ffmpeg" and "ffprobe" on PATH.
func New(ffmpeg, ffprobe string, sampleRate, channels int) *Tool {
	return NewWithRunner(ffmpeg, ffprobe, sampleRate, channels, execRunner{})
}

// NewWithRunner is New with an injected runner.
func NewWithRunner(ffmpeg, ffprobe string, sampleRate, channels int, r Runner) *Tool {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	return &Tool{FFmpeg: ffmpeg, FFprobe: ffprobe, SampleRate: sampleRate, Channels: channels, run: r}
}

// ProbeDuration returns the container duration of path in seconds.
func (t *Tool) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := t.run.Run(ctx, t.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(out))
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("ffprobe: no duration for %s", path)
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: parse duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("ffprobe: non-positive duration %v", d)
	}
	return d, nil
}

// ExtractChunk writes chunk c of src as a mono PCM wav into dir and returns
// its path.
func (t *Tool) ExtractChunk(ctx context.Context, src, dir string, c stitch.Chunk) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(dir, fmt.Sprintf("chunk_%04d.wav", c.Index))
	_, err := t.run.Run(ctx, t.FFmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(c.StartTime),
		"-t", formatSeconds(c.Duration()),
		"-i", src,
		"-ac", strconv.Itoa(t.Channels),
		"-ar", strconv.Itoa(t.SampleRate),
		"-f", "wav",
		out,
	)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", c, err)
	}
	return out, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
