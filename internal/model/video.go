// Package model holds the data types shared across clipkit's core
// packages: uploaded videos, their subtitle preparation records, parsed
// transcript cues and keyword matches.
package model

import "time"

// AllowedVideoExtensions lists the accepted upload extensions, lowercase
// and dot-prefixed.
var AllowedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm", ".flv", ".wmv"}

// IsAllowedVideoExt reports whether ext (as returned by filepath.Ext,
// any case) is one of the supported video extensions.
func IsAllowedVideoExt(ext string) bool {
	for _, allowed := range AllowedVideoExtensions {
		if equalFold(ext, allowed) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Video is a single uploaded media file and its user-editable metadata.
type Video struct {
	ID               string
	OriginalFilename string
	StoredFilename   string
	FilePath         string
	FileSize         int64
	ContentType      string
	UploadTime       time.Time
	Title            string
	Description      string
	Tags             []string
	Likes            int
	Duration         string
	SubtitleReady    bool
}

// SubtitleSource identifies which pipeline stage produced a subtitle artifact.
type SubtitleSource string

const (
	SourceEmbedded SubtitleSource = "embedded"
	SourceExternal SubtitleSource = "external"
	SourceASR      SubtitleSource = "asr"
	SourceUnknown  SubtitleSource = "unknown"
)

// ProcessingStatus is the lifecycle state of a PreparationRecord.
type ProcessingStatus string

const (
	StatusProcessing ProcessingStatus = "processing"
	StatusSuccess    ProcessingStatus = "success"
	StatusFailed     ProcessingStatus = "failed"
)

// PreparationRecord is the current (and only current) subtitle-preparation
// outcome for a video. Writing a new record for a video_id replaces the old.
type PreparationRecord struct {
	VideoID           string
	VideoPath         string
	SubtitleSource    SubtitleSource
	SubtitlePath      string
	SubtitleLanguage  string
	ProcessingStatus  ProcessingStatus
	ErrorMessage      string
	ASRModel          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Cue is one timed-text entry of a parsed transcript.
type Cue struct {
	Index int
	Start float64 // seconds
	End   float64 // seconds
	Text  string
}

// Match is a Cue that contained a search keyword, plus the highlighted
// rendering of its text.
type Match struct {
	Cue
	Keyword          string
	HighlightedText  string
}
