// Package clip cuts a padded time range out of a video with ffmpeg.
package clip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/process"
)

const cutTimeout = 300 * time.Second

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_\-.]`)

// SanitizeFilenameComponent replaces every character outside the
// allow-list with an underscore, so a keyword can be embedded in a
// generated clip filename without escaping shell or filesystem syntax.
func SanitizeFilenameComponent(s string) string {
	if s == "" {
		return "clip"
	}
	return unsafeChars.ReplaceAllString(s, "_")
}

// Request describes one cut: a padded [Start, End] range of VideoPath,
// destined for OutPath.
type Request struct {
	VideoPath string
	Start     float64 // seconds, pre-padding
	End       float64 // seconds, pre-padding
	Padding   float64 // seconds, applied both directions
	OutPath   string
}

// Result is the outcome of a successful cut.
type Result struct {
	OutPath  string
	Start    float64 // seconds, post-padding
	End      float64 // seconds, post-padding
	Duration float64 // seconds
}

// Cutter invokes ffmpeg to extract one clip at a time.
type Cutter struct {
	Runner *process.Runner
}

// NewCutter builds a Cutter around the given Process Runner.
func NewCutter(runner *process.Runner) *Cutter {
	return &Cutter{Runner: runner}
}

// Cut re-encodes the video track and copies the audio track for the
// padded range in req, writing the result to req.OutPath.
func (c *Cutter) Cut(ctx context.Context, req Request) (Result, error) {
	if _, err := os.Stat(req.VideoPath); err != nil {
		return Result{}, apperr.New(apperr.KindFileMissing, "video file does not exist: "+req.VideoPath)
	}

	start := req.Start - req.Padding
	if start < 0 {
		start = 0
	}
	end := req.End + req.Padding

	if err := ensureOutputDir(req.OutPath); err != nil {
		return Result{}, err
	}

	args := []string{
		"-i", req.VideoPath,
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-c:v", "libx264",
		"-c:a", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y", req.OutPath,
	}

	if _, err := c.Runner.Run(ctx, "ffmpeg", args, cutTimeout); err != nil {
		return Result{}, err
	}

	return Result{
		OutPath:  req.OutPath,
		Start:    start,
		End:      end,
		Duration: end - start,
	}, nil
}

func ensureOutputDir(outPath string) error {
	dir := filepath.Dir(outPath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, "could not create clip output directory", err)
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// OutputPath derives a clip filename from the source video's directory,
// a sanitized keyword and the UTC timestamp of at, matching the naming
// scheme of auto-generated clips when no explicit output path is given.
func OutputPath(videoPath, keyword string, at time.Time) string {
	dir := filepath.Dir(videoPath)
	safe := SanitizeFilenameComponent(keyword)
	name := fmt.Sprintf("%s_clip_%s.mp4", safe, at.UTC().Format("20060102_150405"))
	return filepath.Join(dir, name)
}
