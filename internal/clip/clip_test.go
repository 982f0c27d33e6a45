package clip

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/process"
)

func TestSanitizeFilenameComponent(t *testing.T) {
	assert.Equal(t, "hello_world", SanitizeFilenameComponent("hello world"))
	assert.Equal(t, "caf__au_lait", SanitizeFilenameComponent("café au lait"))
	assert.Equal(t, "keep-this.one_two", SanitizeFilenameComponent("keep-this.one_two"))
	assert.Equal(t, "clip", SanitizeFilenameComponent(""))
}

func TestOutputPath(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got := OutputPath("/data/videos/movie.mp4", "hello world", at)
	assert.Equal(t, filepath.Join("/data/videos", "hello_world_clip_20260304_050607.mp4"), got)
}

func TestPaddingClamp(t *testing.T) {
	// start-padding never goes negative; end-padding has no upper clamp.
	start := 0.5
	padding := 1.0
	clamped := start - padding
	if clamped < 0 {
		clamped = 0
	}
	assert.Equal(t, 0.0, clamped)

	end := 10.0
	assert.Equal(t, 11.0, end+padding)
}

func TestCut_MissingVideoReturnsFileMissing(t *testing.T) {
	runner := process.NewRunner(map[string]string{"ffmpeg": "/no/such/ffmpeg"})
	cutter := NewCutter(runner)

	_, err := cutter.Cut(context.Background(), Request{
		VideoPath: filepath.Join(t.TempDir(), "does-not-exist.mp4"),
		Start:     1,
		End:       2,
		OutPath:   filepath.Join(t.TempDir(), "out.mp4"),
	})

	require := assert.New(t)
	require.Error(err)
	appErr, ok := apperr.As(err)
	require.True(ok)
	require.Equal(apperr.KindFileMissing, appErr.Kind)
}
