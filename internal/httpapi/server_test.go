package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipkit/clipkit/internal/acquire"
	"github.com/clipkit/clipkit/internal/clip"
	"github.com/clipkit/clipkit/internal/jobs"
	"github.com/clipkit/clipkit/internal/prepare"
	"github.com/clipkit/clipkit/internal/probe"
	"github.com/clipkit/clipkit/internal/process"
	"github.com/clipkit/clipkit/internal/search"
	"github.com/clipkit/clipkit/internal/store"
)

func testLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.Disabled)
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dataDir := t.TempDir()
	videosDir := filepath.Join(dataDir, "videos")
	require.NoError(t, os.MkdirAll(videosDir, 0o755))

	st, err := store.Open(filepath.Join(dataDir, "clipkit.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runner := process.NewRunner(map[string]string{"ffmpeg": "/no/such/ffmpeg", "whisper": "/no/such/whisper"})
	prober := probe.NewProber(runner, testLogger())
	acquirer := acquire.NewAcquirer(runner, prober, testLogger())
	coordinator := prepare.NewCoordinator(acquirer, st, filepath.Join(dataDir, "subtitles"), testLogger())
	cutter := clip.NewCutter(runner)
	searcher := search.NewSearcher(cutter, testLogger())
	tracker := jobs.NewTracker()

	s, err := NewServer(&Config{Host: "127.0.0.1", Port: 0}, Deps{
		Store:       st,
		Coordinator: coordinator,
		Searcher:    searcher,
		Jobs:        tracker,
		VideosDir:   videosDir,
	}, testLogger())
	require.NoError(t, err)
	return s, videosDir
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleListVideos_Empty(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body["videos"])
}

func TestHandleGetVideo_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/videos/missing", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleUpload_RejectsUnsupportedExtension(t *testing.T) {
	s, _ := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUpload_AcceptsVideoAndInsertsRow(t *testing.T) {
	s, videosDir := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, _ = part.Write([]byte("fake video bytes"))
	require.NoError(t, writer.WriteField("title", "My Clip"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["video_id"])
	assert.Equal(t, "clip.mp4", resp["filename"])
	assert.NotEmpty(t, resp["upload_time"])
	assert.NotEmpty(t, resp["message"])

	entries, err := os.ReadDir(videosDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHandleUpload_RemovesPartialFileOnSaveFailure(t *testing.T) {
	s, videosDir := newTestServer(t)
	// Replace the videos directory with a file so writes under it fail.
	require.NoError(t, os.RemoveAll(videosDir))
	require.NoError(t, os.WriteFile(videosDir, []byte("blocking"), 0o644))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, _ = part.Write([]byte("fake video bytes"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleSearch_RequiresQuery(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSearch_MatchesTitleCaseInsensitively(t *testing.T) {
	s, _ := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, _ = part.Write([]byte("fake video bytes"))
	require.NoError(t, writer.WriteField("title", "My Awesome Clip"))
	require.NoError(t, writer.Close())

	uploadReq := httptest.NewRequest(http.MethodPost, "/upload", body)
	uploadReq.Header.Set("Content-Type", writer.FormDataContentType())
	uploadW := httptest.NewRecorder()
	s.router.ServeHTTP(uploadW, uploadReq)
	require.Equal(t, http.StatusCreated, uploadW.Code)

	req := httptest.NewRequest(http.MethodGet, "/search?q=awesome", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["total"])
	results, ok := resp["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "My Awesome Clip", first["title"])
}

func TestHandleClipSearch_RequiresKeyword(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/videos/missing/clip", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleClipSearch_UnknownVideoNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/videos/missing/clip?keyword=hello", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
