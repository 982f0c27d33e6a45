// Package acquire produces exactly one subtitle artifact for a video
// by falling through embedded extraction, sidecar discovery, then ASR
// synthesis, short-circuiting on the first stage that succeeds.
package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog"

	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/model"
	"github.com/clipkit/clipkit/internal/probe"
	"github.com/clipkit/clipkit/internal/process"
	"github.com/clipkit/clipkit/internal/sidecar"
)

const (
	extractTimeout = 120 * time.Second
	asrTimeout     = 0 // unbounded per spec.md §5
)

var detectedLanguage = regexp.MustCompile(`Detected language:\s*(\w+)`)

// Config carries the per-preparation knobs the fall-through stages
// consult, replacing the keyword-bag style of the source implementation.
type Config struct {
	PreferredLanguage string
	ASRModel          string
	SubtitlesDir      string
}

// Outcome is the artifact produced by whichever stage succeeded.
type Outcome struct {
	SubtitlePath     string
	SubtitleSource   model.SubtitleSource
	SubtitleLanguage string
	ASRModel         string
}

// Acquirer runs the three-stage fall-through for a single video.
type Acquirer struct {
	Runner *process.Runner
	Prober *probe.Prober
	Log    zerolog.Logger
}

// NewAcquirer builds an Acquirer around the given Process Runner and Probe.
func NewAcquirer(runner *process.Runner, prober *probe.Prober, log zerolog.Logger) *Acquirer {
	return &Acquirer{Runner: runner, Prober: prober, Log: log}
}

// Acquire runs embedded extraction, then sidecar discovery, then ASR,
// returning the first stage's outcome to succeed.
func (a *Acquirer) Acquire(ctx context.Context, videoPath string, cfg Config) (Outcome, error) {
	if out, err := a.tryEmbedded(ctx, videoPath, cfg); err == nil {
		return out, nil
	} else {
		a.Log.Warn().Err(err).Str("video", videoPath).Msg("embedded subtitle extraction unavailable, falling back to sidecar")
	}

	if out, err := a.tryExternal(videoPath); err == nil {
		return out, nil
	} else {
		a.Log.Warn().Err(err).Str("video", videoPath).Msg("no sidecar subtitle found, falling back to ASR")
	}

	out, err := a.tryASR(ctx, videoPath, cfg)
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.KindOf(err), "all subtitle acquisition stages failed, last stage was ASR", err)
	}
	return out, nil
}

func retryOnToolFailed(maxAttempts int) failsafe.Policy[Outcome] {
	return retrypolicy.Builder[Outcome]().
		HandleIf(func(_ Outcome, err error) bool {
			return apperr.KindOf(err) == apperr.KindToolFailed
		}).
		WithMaxAttempts(maxAttempts).
		ReturnLastFailure().
		Build()
}

func (a *Acquirer) tryEmbedded(ctx context.Context, videoPath string, cfg Config) (Outcome, error) {
	policy := retryOnToolFailed(2)
	return failsafe.Get(func() (Outcome, error) {
		report, err := a.Prober.Probe(ctx, videoPath)
		if err != nil {
			return Outcome{}, err
		}
		if !report.HasSubtitles {
			return Outcome{}, apperr.New(apperr.KindNoTranscript, "video has no embedded subtitle streams")
		}

		best := selectBestStream(report.Streams, cfg.PreferredLanguage)

		stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
		outPath := filepath.Join(filepath.Dir(videoPath), stem+"_embedded.srt")

		args := []string{"-i", videoPath, "-map", fmt.Sprintf("0:s:%d", best.Index), "-c:s", "srt", "-y", outPath}
		if _, err := a.Runner.Run(ctx, "ffmpeg", args, extractTimeout); err != nil {
			return Outcome{}, err
		}

		return Outcome{
			SubtitlePath:     outPath,
			SubtitleSource:   model.SourceEmbedded,
			SubtitleLanguage: best.Language,
		}, nil
	}, policy)
}

func selectBestStream(streams []probe.SubtitleStream, preferredLanguage string) probe.SubtitleStream {
	if preferredLanguage != "" {
		for _, s := range streams {
			if strings.HasPrefix(strings.ToLower(s.Language), strings.ToLower(preferredLanguage)) {
				return s
			}
		}
	}
	return streams[0]
}

func (a *Acquirer) tryExternal(videoPath string) (Outcome, error) {
	candidates, err := sidecar.Scan(videoPath)
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.KindFileMissing, "sidecar scan failed", err)
	}
	if len(candidates) == 0 {
		return Outcome{}, apperr.New(apperr.KindNoTranscript, "no sidecar subtitle files found")
	}

	chosen := candidates[0]
	for _, c := range candidates {
		if strings.EqualFold(filepath.Ext(c), ".srt") {
			chosen = c
			break
		}
	}

	return Outcome{
		SubtitlePath:     chosen,
		SubtitleSource:   model.SourceExternal,
		SubtitleLanguage: inferLanguageFromPath(chosen),
	}, nil
}

// inferLanguageFromPath matches substrings against the whole path; a
// directory named for a language will taint every file in it, a known
// limitation inherited from the source heuristic.
func inferLanguageFromPath(path string) string {
	lower := strings.ToLower(path)
	for _, s := range []string{"zh", "chi", "chinese", "cn"} {
		if strings.Contains(lower, s) {
			return "zh"
		}
	}
	for _, s := range []string{"en", "eng", "english"} {
		if strings.Contains(lower, s) {
			return "en"
		}
	}
	return "unknown"
}

func (a *Acquirer) tryASR(ctx context.Context, videoPath string, cfg Config) (Outcome, error) {
	policy := retryOnToolFailed(2)
	return failsafe.Get(func() (Outcome, error) {
		subtitlesDir := cfg.SubtitlesDir
		if subtitlesDir == "" {
			subtitlesDir = "data/subtitles"
		}
		if err := os.MkdirAll(subtitlesDir, 0o755); err != nil {
			return Outcome{}, apperr.Wrap(apperr.KindPersistenceError, "could not create subtitles directory", err)
		}

		model_ := cfg.ASRModel
		if model_ == "" {
			model_ = "base"
		}

		args := []string{videoPath, "--output_format", "srt", "--output_dir", subtitlesDir}
		if cfg.PreferredLanguage != "" {
			args = append(args, "--language", cfg.PreferredLanguage)
		}
		args = append(args, "--model", model_, "--verbose", "False", "--fp16", "False")

		res, err := a.Runner.Run(ctx, "whisper", args, asrTimeout)
		if err != nil {
			return Outcome{}, err
		}

		stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
		outPath := filepath.Join(subtitlesDir, stem+".srt")

		language := "unknown"
		if m := detectedLanguage.FindStringSubmatch(res.Stderr); m != nil {
			language = m[1]
		}

		return Outcome{
			SubtitlePath:     outPath,
			SubtitleSource:   model.SourceASR,
			SubtitleLanguage: language,
			ASRModel:         model_,
		}, nil
	}, policy)
}
