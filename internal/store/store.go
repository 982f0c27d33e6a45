// Package store persists Video rows and PreparationRecords in a
// single-file sqlite database over one connection. Each call is
// self-contained; only UpsertPreparationRecord runs more than one
// statement, inside a single transaction.
package store

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS video_metadata (
	id TEXT PRIMARY KEY,
	original_filename TEXT NOT NULL,
	stored_filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	content_type TEXT,
	upload_time TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT DEFAULT '',
	tags TEXT DEFAULT '',
	likes INTEGER DEFAULT 0,
	duration TEXT DEFAULT 'unknown',
	subtitle_ready BOOLEAN DEFAULT 0
);

CREATE TABLE IF NOT EXISTS subtitle_processing (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id TEXT NOT NULL,
	video_path TEXT NOT NULL,
	subtitle_source TEXT,
	subtitle_path TEXT,
	subtitle_language TEXT,
	processing_status TEXT NOT NULL,
	error_message TEXT,
	asr_model TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subtitle_processing_video_id ON subtitle_processing(video_id);
CREATE INDEX IF NOT EXISTS idx_subtitle_processing_status ON subtitle_processing(processing_status);
`

// Store wraps a single sqlite connection. Every method opens,
// executes, and (for writes) commits before returning — no
// transaction outlives the call that began it. UpsertPreparationRecord's
// delete and insert share one transaction.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates (or reuses) the sqlite file at path and ensures the
// schema exists.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistenceError, "could not open database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistenceError, "could not initialize schema", err)
	}

	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertVideo persists a newly uploaded video's row.
func (s *Store) InsertVideo(v model.Video) error {
	s.log.Debug().Str("video_id", v.ID).Str("size", humanize.Bytes(uint64(v.FileSize))).Msg("inserting video row")
	_, err := s.db.Exec(`
		INSERT INTO video_metadata
		(id, original_filename, stored_filename, file_path, file_size, content_type,
		 upload_time, title, description, tags, likes, duration, subtitle_ready)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.OriginalFilename, v.StoredFilename, v.FilePath, v.FileSize, v.ContentType,
		v.UploadTime.Format(time.RFC3339), v.Title, v.Description, strings.Join(v.Tags, ","),
		v.Likes, v.Duration, v.SubtitleReady,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, "could not insert video row", err)
	}
	return nil
}

// GetVideo returns the video with id, or apperr.NotFound.
func (s *Store) GetVideo(id string) (model.Video, error) {
	row := s.db.QueryRow(`SELECT id, original_filename, stored_filename, file_path, file_size,
		content_type, upload_time, title, description, tags, likes, duration, subtitle_ready
		FROM video_metadata WHERE id = ?`, id)
	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return model.Video{}, apperr.New(apperr.KindNotFound, "video not found")
	}
	if err != nil {
		return model.Video{}, apperr.Wrap(apperr.KindPersistenceError, "could not read video row", err)
	}
	return v, nil
}

// ListVideos returns every video ordered by upload_time descending.
func (s *Store) ListVideos() ([]model.Video, error) {
	rows, err := s.db.Query(`SELECT id, original_filename, stored_filename, file_path, file_size,
		content_type, upload_time, title, description, tags, likes, duration, subtitle_ready
		FROM video_metadata ORDER BY upload_time DESC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistenceError, "could not list videos", err)
	}
	defer rows.Close()
	return scanVideos(rows)
}

// SearchVideos matches term case-insensitively against title,
// description, original_filename and the comma-joined tag string.
func (s *Store) SearchVideos(term string) ([]model.Video, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	rows, err := s.db.Query(`SELECT id, original_filename, stored_filename, file_path, file_size,
		content_type, upload_time, title, description, tags, likes, duration, subtitle_ready
		FROM video_metadata
		WHERE LOWER(title) LIKE ? OR LOWER(description) LIKE ?
		   OR LOWER(original_filename) LIKE ? OR LOWER(tags) LIKE ?
		ORDER BY upload_time DESC`, pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistenceError, "could not search videos", err)
	}
	defer rows.Close()
	return scanVideos(rows)
}

// DeleteVideo removes the row for id. It does not touch the
// filesystem; callers remove bytes first per spec.md §3's
// best-effort ordering.
func (s *Store) DeleteVideo(id string) error {
	res, err := s.db.Exec(`DELETE FROM video_metadata WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, "could not delete video row", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, "could not confirm deletion", err)
	}
	if n == 0 {
		return apperr.New(apperr.KindNotFound, "video not found")
	}
	return nil
}

// SetSubtitleReady flips the subtitle_ready flag on a video row.
func (s *Store) SetSubtitleReady(id string, ready bool) error {
	_, err := s.db.Exec(`UPDATE video_metadata SET subtitle_ready = ? WHERE id = ?`, ready, id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, "could not update subtitle_ready", err)
	}
	return nil
}

// UpsertPreparationRecord replaces the current record for a video_id,
// upholding the "at most one current record per video" invariant by
// deleting any prior rows for the same video_id first.
func (s *Store) UpsertPreparationRecord(r model.PreparationRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, "could not begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM subtitle_processing WHERE video_id = ?`, r.VideoID); err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, "could not clear prior preparation record", err)
	}

	_, err = tx.Exec(`INSERT INTO subtitle_processing
		(video_id, video_path, subtitle_source, subtitle_path, subtitle_language,
		 processing_status, error_message, asr_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.VideoID, r.VideoPath, string(r.SubtitleSource), r.SubtitlePath, r.SubtitleLanguage,
		string(r.ProcessingStatus), r.ErrorMessage, r.ASRModel,
		r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, "could not insert preparation record", err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, "could not commit preparation record", err)
	}
	return nil
}

// GetPreparationRecord returns the current record for videoID, if any.
func (s *Store) GetPreparationRecord(videoID string) (model.PreparationRecord, bool, error) {
	row := s.db.QueryRow(`SELECT video_id, video_path, subtitle_source, subtitle_path,
		subtitle_language, processing_status, error_message, asr_model, created_at, updated_at
		FROM subtitle_processing WHERE video_id = ? ORDER BY id DESC LIMIT 1`, videoID)

	var r model.PreparationRecord
	var source, status, created, updated string
	err := row.Scan(&r.VideoID, &r.VideoPath, &source, &r.SubtitlePath, &r.SubtitleLanguage,
		&status, &r.ErrorMessage, &r.ASRModel, &created, &updated)
	if err == sql.ErrNoRows {
		return model.PreparationRecord{}, false, nil
	}
	if err != nil {
		return model.PreparationRecord{}, false, apperr.Wrap(apperr.KindPersistenceError, "could not read preparation record", err)
	}
	r.SubtitleSource = model.SubtitleSource(source)
	r.ProcessingStatus = model.ProcessingStatus(status)
	r.CreatedAt, _ = time.Parse(time.RFC3339, created)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return r, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (model.Video, error) {
	var v model.Video
	var uploadTime, tags string
	err := row.Scan(&v.ID, &v.OriginalFilename, &v.StoredFilename, &v.FilePath, &v.FileSize,
		&v.ContentType, &uploadTime, &v.Title, &v.Description, &tags, &v.Likes, &v.Duration, &v.SubtitleReady)
	if err != nil {
		return model.Video{}, err
	}
	v.UploadTime, _ = time.Parse(time.RFC3339, uploadTime)
	if tags != "" {
		v.Tags = strings.Split(tags, ",")
	}
	return v, nil
}

func scanVideos(rows *sql.Rows) ([]model.Video, error) {
	var videos []model.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindPersistenceError, "could not scan video row", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
