package sidecar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{}, 0o644))
}

func TestScan_PrefersSRTThenLanguageOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "movie.mp4")
	touch(t, dir, "movie.en.srt")
	touch(t, dir, "movie.srt")
	touch(t, dir, "movie.ass")

	results, err := Scan(filepath.Join(dir, "movie.mp4"))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, filepath.Join(dir, "movie.srt"), results[0])
	assert.Equal(t, filepath.Join(dir, "movie.en.srt"), results[1])
	assert.Equal(t, filepath.Join(dir, "movie.ass"), results[2])
}

func TestScan_NoSidecars(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "movie.mp4")

	results, err := Scan(filepath.Join(dir, "movie.mp4"))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScan_OnlyMatchingStem(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "movie.mp4")
	touch(t, dir, "othermovie.srt")

	results, err := Scan(filepath.Join(dir, "movie.mp4"))
	require.NoError(t, err)
	assert.Empty(t, results)
}
