// Package prepare coordinates subtitle acquisition for a video,
// serializing concurrent callers on the same video so the Subtitle
// Acquirer runs at most once per video at a time.
package prepare

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipkit/clipkit/internal/acquire"
	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/model"
	"github.com/clipkit/clipkit/internal/store"
)

// Options adjusts a single Prepare call.
type Options struct {
	ForceRegenerate   bool
	PreferredLanguage string
	ASRModel          string
}

// Coordinator serializes subtitle preparation per video_id and
// persists its outcome through the Metadata Store Adapter.
type Coordinator struct {
	Acquirer     *acquire.Acquirer
	Store        *store.Store
	SubtitlesDir string
	Log          zerolog.Logger

	locks sync.Map // video_id -> *sync.Mutex
}

// NewCoordinator builds a Coordinator around the given Acquirer and Store.
func NewCoordinator(acquirer *acquire.Acquirer, st *store.Store, subtitlesDir string, log zerolog.Logger) *Coordinator {
	return &Coordinator{Acquirer: acquirer, Store: st, SubtitlesDir: subtitlesDir, Log: log}
}

func (c *Coordinator) lockFor(videoID string) *sync.Mutex {
	m, _ := c.locks.LoadOrStore(videoID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Prepare ensures videoID has a current PreparationRecord, running the
// Acquirer unless a successful record already exists and
// opts.ForceRegenerate is unset. A second concurrent call for the same
// video_id blocks until the first finishes; if the first succeeded it
// then returns that record without re-running the Acquirer, but if the
// first failed it runs the Acquirer again itself.
func (c *Coordinator) Prepare(ctx context.Context, videoID, videoPath string, opts Options) (model.PreparationRecord, error) {
	lock := c.lockFor(videoID)
	lock.Lock()
	defer lock.Unlock()

	if _, statErr := os.Stat(videoPath); statErr != nil {
		now := timeNow()
		record := model.PreparationRecord{
			VideoID:          videoID,
			VideoPath:        videoPath,
			ProcessingStatus: model.StatusFailed,
			ErrorMessage:     "video file does not exist: " + videoPath,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := c.Store.UpsertPreparationRecord(record); err != nil {
			return model.PreparationRecord{}, err
		}
		if err := c.Store.SetSubtitleReady(videoID, false); err != nil {
			return model.PreparationRecord{}, err
		}
		return record, apperr.New(apperr.KindFileMissing, record.ErrorMessage)
	}

	if !opts.ForceRegenerate {
		if existing, found, err := c.Store.GetPreparationRecord(videoID); err != nil {
			return model.PreparationRecord{}, err
		} else if found && existing.ProcessingStatus == model.StatusSuccess {
			return existing, nil
		}
	}

	now := timeNow()
	processing := model.PreparationRecord{
		VideoID:          videoID,
		VideoPath:        videoPath,
		ProcessingStatus: model.StatusProcessing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := c.Store.UpsertPreparationRecord(processing); err != nil {
		return model.PreparationRecord{}, err
	}

	outcome, err := c.Acquirer.Acquire(ctx, videoPath, acquire.Config{
		PreferredLanguage: opts.PreferredLanguage,
		ASRModel:          opts.ASRModel,
		SubtitlesDir:      c.SubtitlesDir,
	})

	record := model.PreparationRecord{
		VideoID:   videoID,
		VideoPath: videoPath,
		CreatedAt: processing.CreatedAt,
		UpdatedAt: timeNow(),
	}

	if err != nil {
		record.ProcessingStatus = model.StatusFailed
		record.ErrorMessage = err.Error()
		if saveErr := c.Store.UpsertPreparationRecord(record); saveErr != nil {
			return model.PreparationRecord{}, saveErr
		}
		if saveErr := c.Store.SetSubtitleReady(videoID, false); saveErr != nil {
			return model.PreparationRecord{}, saveErr
		}
		return record, apperr.Wrap(apperr.KindOf(err), "subtitle preparation failed for "+videoID, err)
	}

	record.ProcessingStatus = model.StatusSuccess
	record.SubtitleSource = outcome.SubtitleSource
	record.SubtitlePath = outcome.SubtitlePath
	record.SubtitleLanguage = outcome.SubtitleLanguage
	record.ASRModel = outcome.ASRModel

	if err := c.Store.UpsertPreparationRecord(record); err != nil {
		return model.PreparationRecord{}, err
	}
	if err := c.Store.SetSubtitleReady(videoID, true); err != nil {
		return model.PreparationRecord{}, err
	}

	return record, nil
}

// BatchOutcome tallies the result of PrepareMissing across every video
// lacking a ready subtitle.
type BatchOutcome struct {
	Attempted int
	Succeeded int
	Failed    int
	Errors    map[string]string
}

// PrepareMissing runs Prepare for every stored video whose
// subtitle_ready flag is false, restoring the batch-maintenance
// operation dropped between the original implementation and its
// distillation. It also re-drives videos left in "processing" by an
// abandoned job after a restart, since those still read as not-ready.
func (c *Coordinator) PrepareMissing(ctx context.Context) (BatchOutcome, error) {
	videos, err := c.Store.ListVideos()
	if err != nil {
		return BatchOutcome{}, err
	}

	outcome := BatchOutcome{Errors: make(map[string]string)}
	for _, v := range videos {
		if v.SubtitleReady {
			continue
		}
		outcome.Attempted++
		if _, err := c.Prepare(ctx, v.ID, v.FilePath, Options{}); err != nil {
			outcome.Failed++
			outcome.Errors[v.ID] = err.Error()
			c.Log.Warn().Err(err).Str("video_id", v.ID).Msg("batch preparation failed for video")
			continue
		}
		outcome.Succeeded++
	}
	return outcome, nil
}

func timeNow() time.Time { return time.Now() }
