package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipkit/clipkit/internal/acquire"
	"github.com/clipkit/clipkit/internal/prepare"
	"github.com/clipkit/clipkit/internal/probe"
	"github.com/clipkit/clipkit/internal/process"
	"github.com/clipkit/clipkit/internal/store"
)

var prepareMissing bool

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "List videos, or drive subtitle preparation for ones missing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if prepareMissing {
			return runPrepareMissing()
		}
		return runListVideos()
	},
}

func init() {
	videosCmd.Flags().BoolVar(&prepareMissing, "prepare-missing", false, "run subtitle preparation for every video lacking a ready transcript")
}

func runListVideos() error {
	st, err := store.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	videos, err := st.ListVideos()
	if err != nil {
		return err
	}
	for _, v := range videos {
		fmt.Printf("%s\t%s\tsubtitle_ready=%v\n", v.ID, v.Title, v.SubtitleReady)
	}
	return nil
}

func runPrepareMissing() error {
	st, err := store.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	overrides := map[string]string{
		"ffmpeg":  cfg.Tools.FFmpegPath,
		"ffprobe": cfg.Tools.FFprobePath,
		"whisper": cfg.Tools.ASRPath,
	}
	runner := process.NewRunner(overrides)
	prober := probe.NewProber(runner, logger)
	acquirer := acquire.NewAcquirer(runner, prober, logger)
	coordinator := prepare.NewCoordinator(acquirer, st, cfg.SubtitlesDir(), logger)

	outcome, err := coordinator.PrepareMissing(context.Background())
	if err != nil {
		return err
	}

	logger.Info().
		Int("attempted", outcome.Attempted).
		Int("succeeded", outcome.Succeeded).
		Int("failed", outcome.Failed).
		Msg("batch subtitle preparation complete")

	for videoID, msg := range outcome.Errors {
		fmt.Printf("%s: %s\n", videoID, msg)
	}
	return nil
}
