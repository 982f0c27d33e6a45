// Package probe inspects a video file's subtitle streams via ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"time"

	iso "github.com/barbashov/iso639-3"
	"github.com/rs/zerolog"
	"github.com/tidwall/pretty"

	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/process"
)

const probeTimeout = 30 * time.Second

// SubtitleStream describes one subtitle track reported by ffprobe.
type SubtitleStream struct {
	Index       int
	CodecName   string
	Language    string
	Title       string
	Disposition map[string]int
	Duration    string
}

// Report is the outcome of probing a video's streams.
type Report struct {
	HasSubtitles bool
	Streams      []SubtitleStream
	TotalStreams int
}

type ffprobeStream struct {
	Index       int               `json:"index"`
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	Duration    string            `json:"duration"`
	Tags        map[string]string `json:"tags"`
	Disposition map[string]int    `json:"disposition"`
}

type ffprobeDocument struct {
	Streams []ffprobeStream `json:"streams"`
}

// Prober wraps the Process Runner with ffprobe's argument vector and
// JSON document shape.
type Prober struct {
	Runner *process.Runner
	Log    zerolog.Logger
}

// NewProber builds a Prober using the given runner for invocation.
func NewProber(runner *process.Runner, log zerolog.Logger) *Prober {
	return &Prober{Runner: runner, Log: log}
}

// Probe runs ffprobe against videoPath and extracts its subtitle streams.
func (p *Prober) Probe(ctx context.Context, videoPath string) (Report, error) {
	args := []string{"-v", "quiet", "-print_format", "json", "-show_streams", videoPath}
	res, err := p.Runner.Run(ctx, "ffprobe", args, probeTimeout)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Kind == apperr.KindToolMissing {
			return Report{}, err
		}
		return Report{}, err
	}

	p.Log.Trace().Str("ffprobe_json", string(pretty.Pretty([]byte(res.Stdout)))).Msg("ffprobe stream report")

	var doc ffprobeDocument
	if err := json.Unmarshal([]byte(res.Stdout), &doc); err != nil {
		return Report{}, apperr.Wrap(apperr.KindMalformedOutput, "ffprobe output is not valid JSON", err)
	}

	var streams []SubtitleStream
	for _, s := range doc.Streams {
		if s.CodecType != "subtitle" {
			continue
		}
		lang := "unknown"
		if tag, ok := s.Tags["language"]; ok && tag != "" {
			lang = normalizeLanguage(tag)
		}
		title := ""
		if t, ok := s.Tags["title"]; ok {
			title = t
		}
		streams = append(streams, SubtitleStream{
			Index:       s.Index,
			CodecName:   s.CodecName,
			Language:    lang,
			Title:       title,
			Disposition: s.Disposition,
			Duration:    s.Duration,
		})
	}

	return Report{
		HasSubtitles: len(streams) > 0,
		Streams:      streams,
		TotalStreams: len(doc.Streams),
	}, nil
}

// normalizeLanguage resolves tag to its two-letter ISO 639-1 code when
// iso639-3 recognizes it and the language has one, otherwise returns
// the raw tag unchanged.
func normalizeLanguage(tag string) string {
	if lang := iso.FromAnyCode(tag); lang != nil && lang.Part1 != "" {
		return lang.Part1
	}
	return tag
}
