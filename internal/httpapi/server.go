// Package httpapi exposes clipkit's upload/search/video-management
// operations over HTTP with go-chi, mapping apperr.Kind to status
// codes and dispatching subtitle preparation to a background job.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/jobs"
	"github.com/clipkit/clipkit/internal/model"
	"github.com/clipkit/clipkit/internal/prepare"
	"github.com/clipkit/clipkit/internal/search"
	"github.com/clipkit/clipkit/internal/store"
)

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EnableCORS   bool
}

// DefaultConfig returns the server's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8000,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		EnableCORS:   true,
	}
}

// Server wires the core components behind an HTTP surface.
type Server struct {
	router   chi.Router
	server   *http.Server
	listener net.Listener
	port     int
	logger   zerolog.Logger

	store        *store.Store
	coordinator  *prepare.Coordinator
	searcher     *search.Searcher
	jobs         *jobs.Tracker
	videosDir    string
}

// Deps bundles the components the HTTP adapter dispatches to.
type Deps struct {
	Store       *store.Store
	Coordinator *prepare.Coordinator
	Searcher    *search.Searcher
	Jobs        *jobs.Tracker
	VideosDir   string
}

// NewServer builds a Server bound to config.Host:config.Port.
func NewServer(config *Config, deps Deps, logger zerolog.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggerMiddleware(logger))
	if config.EnableCORS {
		r.Use(corsMiddleware())
	}

	s := &Server{
		router:      r,
		listener:    listener,
		port:        port,
		logger:      logger,
		store:       deps.Store,
		coordinator: deps.Coordinator,
		searcher:    deps.Searcher,
		jobs:        deps.Jobs,
		videosDir:   deps.VideosDir,
	}

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Get("/search", s.handleSearch)
	r.Get("/videos", s.handleListVideos)
	r.Get("/videos/{id}", s.handleGetVideo)
	r.Delete("/videos/{id}", s.handleDeleteVideo)
	r.Post("/videos/{id}/clip", s.handleClipSearch)

	s.server = &http.Server{
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s, nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int { return s.port }

// Start begins serving requests in the background.
func (s *Server) Start() {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("http server error")
		}
	}()
}

// Shutdown gracefully stops the server within a 5s deadline.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

var logBlacklist = []string{"/healthz"}

func loggerMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			for _, suffix := range logBlacklist {
				if strings.HasSuffix(r.URL.Path, suffix) {
					return
				}
			}

			logger.Trace().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.Status()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidationError, apperr.KindUnsupportedFormat:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "clipkit"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "time": time.Now().Format(time.RFC3339)})
}

func videoResponse(v model.Video) map[string]any {
	return map[string]any{
		"id":                v.ID,
		"original_filename": v.OriginalFilename,
		"file_size":         v.FileSize,
		"content_type":      v.ContentType,
		"upload_time":       v.UploadTime.Format(time.RFC3339),
		"title":             v.Title,
		"description":       v.Description,
		"tags":              v.Tags,
		"likes":             v.Likes,
		"duration":          v.Duration,
		"subtitle_ready":    v.SubtitleReady,
	}
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.store.ListVideos()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(videos))
	for _, v := range videos {
		out = append(out, videoResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": out})
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := s.store.GetVideo(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videoResponse(v))
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := s.store.GetVideo(id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := removeFile(v.FilePath); err != nil {
		s.logger.Warn().Err(err).Str("video_id", id).Msg("could not remove video file, deleting row anyway")
	}

	if err := s.store.DeleteVideo(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func searchResultResponse(v model.Video) map[string]any {
	return map[string]any{
		"id":                v.ID,
		"title":             v.Title,
		"cover":             "",
		"likes":             v.Likes,
		"duration":          v.Duration,
		"upload_time":       v.UploadTime.Format(time.RFC3339),
		"file_size":         v.FileSize,
		"original_filename": v.OriginalFilename,
	}
}

// handleSearch answers the metadata-search surface: a case-insensitive
// substring match across title, description, original_filename and tags.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, apperr.New(apperr.KindValidationError, "q is required"))
		return
	}

	videos, err := s.store.SearchVideos(q)
	if err != nil {
		writeError(w, err)
		return
	}

	results := make([]map[string]any, 0, len(videos))
	for _, v := range videos {
		results = append(results, searchResultResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"total":   len(results),
		"results": results,
	})
}

// handleClipSearch runs a keyword search against one video's subtitles
// and cuts a clip for every match, an enrichment beyond the core
// metadata-search contract.
func (s *Server) handleClipSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		writeError(w, apperr.New(apperr.KindValidationError, "keyword is required"))
		return
	}

	v, err := s.store.GetVideo(id)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.searcher.SearchAndClip(r.Context(), v.FilePath, keyword, "", 0, "")
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"keyword":          result.Keyword,
		"subtitle_file":    result.SubtitleFile,
		"total_matches":    result.TotalMatches,
		"successful_clips": result.SuccessfulClips,
		"clips":            result.Clips,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 30); err != nil {
		writeError(w, apperr.Wrap(apperr.KindValidationError, "could not parse upload", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindValidationError, "missing file field", err))
		return
	}
	defer file.Close()

	ext := extOf(header.Filename)
	if !model.IsAllowedVideoExt(ext) {
		writeError(w, apperr.New(apperr.KindUnsupportedFormat, "unsupported video extension: "+ext))
		return
	}

	id := uuid.New().String()
	storedName := id + ext
	destPath := filepath.Join(s.videosDir, storedName)

	size, err := saveUploadedFile(file, destPath)
	if err != nil {
		if removeErr := removeFile(destPath); removeErr != nil {
			s.logger.Warn().Err(removeErr).Str("path", destPath).Msg("could not remove partial upload")
		}
		writeError(w, apperr.Wrap(apperr.KindPersistenceError, "could not save uploaded file", err))
		return
	}

	video := model.Video{
		ID:               id,
		OriginalFilename: header.Filename,
		StoredFilename:   storedName,
		FilePath:         destPath,
		FileSize:         size,
		ContentType:      header.Header.Get("Content-Type"),
		UploadTime:       time.Now(),
		Title:            r.FormValue("title"),
		Description:      r.FormValue("description"),
	}
	if video.Title == "" {
		video.Title = header.Filename
	}

	if err := s.store.InsertVideo(video); err != nil {
		writeError(w, err)
		return
	}

	jobID := "prepare_" + id
	s.jobs.Track(context.Background(), jobID, func(ctx context.Context) (any, error) {
		return s.coordinator.Prepare(ctx, id, destPath, prepare.Options{})
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "upload successful",
		"video_id":    video.ID,
		"filename":    video.OriginalFilename,
		"file_size":   video.FileSize,
		"upload_time": video.UploadTime.Format(time.RFC3339),
	})
}

func extOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx:])
}

func saveUploadedFile(src io.Reader, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, err
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}
	defer dst.Close()
	return io.Copy(dst, src)
}

func removeFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
