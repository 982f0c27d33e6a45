// Package search finds subtitle cues matching a keyword and dispatches
// the Clip Cutter against each match.
package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/clip"
	"github.com/clipkit/clipkit/internal/model"
	"github.com/clipkit/clipkit/internal/sidecar"
	"github.com/clipkit/clipkit/internal/subs"
)

const defaultPadding = 1.0

// ClipOutcome is one match's clip-cutting result, success or failure.
type ClipOutcome struct {
	Match   model.Match
	Path    string
	Start   float64
	End     float64
	Error   string
}

// Result is the full response of a search-and-clip run.
type Result struct {
	Keyword         string
	SubtitleFile    string
	TotalMatches    int
	SuccessfulClips int
	Clips           []ClipOutcome
}

// Searcher resolves subtitles, matches a keyword against their cues
// and drives the Clip Cutter for every match.
type Searcher struct {
	Cutter *clip.Cutter
	Log    zerolog.Logger
}

// NewSearcher builds a Searcher around the given Clip Cutter.
func NewSearcher(cutter *clip.Cutter, log zerolog.Logger) *Searcher {
	return &Searcher{Cutter: cutter, Log: log}
}

// Match returns every cue in cues whose text contains keyword,
// case-insensitively, as a literal substring — keyword is never
// interpreted as a regular expression.
func Match(cues []model.Cue, keyword string) []model.Match {
	var matches []model.Match
	lowerKeyword := strings.ToLower(keyword)
	for _, c := range cues {
		if !strings.Contains(strings.ToLower(c.Text), lowerKeyword) {
			continue
		}
		matches = append(matches, model.Match{
			Cue:             c,
			Keyword:         keyword,
			HighlightedText: Highlight(c.Text, keyword),
		})
	}
	return matches
}

// Highlight wraps every case-insensitive occurrence of keyword in text
// with **...**, preserving the matched span's original casing rather
// than the keyword's.
func Highlight(text, keyword string) string {
	if keyword == "" {
		return text
	}
	lowerText := strings.ToLower(text)
	lowerKeyword := strings.ToLower(keyword)
	klen := len(lowerKeyword)

	var b strings.Builder
	i := 0
	for i < len(text) {
		idx := strings.Index(lowerText[i:], lowerKeyword)
		if idx < 0 {
			b.WriteString(text[i:])
			break
		}
		start := i + idx
		b.WriteString(text[i:start])
		b.WriteString("**")
		b.WriteString(text[start : start+klen])
		b.WriteString("**")
		i = start + klen
	}
	return b.String()
}

// resolveSubtitlePath returns srtPath if non-empty, else the first
// .srt sidecar candidate found next to videoPath.
func resolveSubtitlePath(videoPath, srtPath string) (string, error) {
	if srtPath != "" {
		return srtPath, nil
	}
	candidates, err := sidecar.Scan(videoPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindFileMissing, "sidecar scan failed", err)
	}
	for _, c := range candidates {
		if strings.EqualFold(c[len(c)-4:], ".srt") {
			return c, nil
		}
	}
	return "", apperr.New(apperr.KindNoTranscript, "no SRT subtitle file found for this video")
}

// SearchAndClip resolves the subtitle file, finds every cue matching
// keyword and cuts a clip for each, padded by paddingSeconds (defaults
// to 1s when zero). One Cutter failure is recorded against that match
// and does not abort the rest of the batch.
func (s *Searcher) SearchAndClip(ctx context.Context, videoPath, keyword, srtPath string, paddingSeconds float64, outputDir string) (Result, error) {
	resolvedPath, err := resolveSubtitlePath(videoPath, srtPath)
	if err != nil {
		return Result{}, err
	}

	padding := paddingSeconds
	if padding == 0 {
		padding = defaultPadding
	}

	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindFileMissing, "could not read subtitle file", err)
	}

	cues, err := subs.Parse(data, s.Log)
	if err != nil {
		return Result{}, err
	}

	matches := Match(cues, keyword)

	result := Result{
		Keyword:      keyword,
		SubtitleFile: resolvedPath,
		TotalMatches: len(matches),
	}

	for i, m := range matches {
		outPath := matchOutputPath(outputDir, videoPath, keyword, i)

		req := clip.Request{
			VideoPath: videoPath,
			Start:     m.Start,
			End:       m.End,
			Padding:   padding,
			OutPath:   outPath,
		}

		res, cutErr := s.Cutter.Cut(ctx, req)
		if cutErr != nil {
			s.Log.Warn().Err(cutErr).Str("video", videoPath).Msg("clip cut failed for a match, continuing batch")
			result.Clips = append(result.Clips, ClipOutcome{Match: m, Error: cutErr.Error()})
			continue
		}

		result.Clips = append(result.Clips, ClipOutcome{
			Match: m,
			Path:  res.OutPath,
			Start: res.Start,
			End:   res.End,
		})
		result.SuccessfulClips++
	}

	return result, nil
}

// matchOutputPath derives the destination file for the index-th match
// (0-based). With an explicit outputDir, matches land at
// "{outputDir}/{safe_keyword}_clip_{index+1}.mp4" so a multi-match batch
// never collides on a single path; otherwise each gets a timestamped
// name next to the source video.
func matchOutputPath(outputDir, videoPath, keyword string, index int) string {
	if outputDir == "" {
		return clip.OutputPath(videoPath, keyword, stableNow())
	}
	safe := clip.SanitizeFilenameComponent(keyword)
	return filepath.Join(outputDir, fmt.Sprintf("%s_clip_%d.mp4", safe, index+1))
}

// stableNow exists so clip filenames stay distinguishable per call
// without callers threading a timestamp through every SearchAndClip
// invocation.
func stableNow() time.Time {
	return time.Now()
}
