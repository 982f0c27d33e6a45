package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clipkit/clipkit/internal/acquire"
	"github.com/clipkit/clipkit/internal/clip"
	"github.com/clipkit/clipkit/internal/httpapi"
	"github.com/clipkit/clipkit/internal/jobs"
	"github.com/clipkit/clipkit/internal/prepare"
	"github.com/clipkit/clipkit/internal/probe"
	"github.com/clipkit/clipkit/internal/process"
	"github.com/clipkit/clipkit/internal/search"
	"github.com/clipkit/clipkit/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the clipkit HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	if err := ensureDataDirs(); err != nil {
		return err
	}

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
	cutter := clip.NewCutter(runner)
	searcher := search.NewSearcher(cutter, logger)
	tracker := jobs.NewTracker()

	srv, err := httpapi.NewServer(&httpapi.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		EnableCORS: true,
	}, httpapi.Deps{
		Store:       st,
		Coordinator: coordinator,
		Searcher:    searcher,
		Jobs:        tracker,
		VideosDir:   cfg.VideosDir(),
	}, logger)
	if err != nil {
		return err
	}

	srv.Start()
	logger.Info().Int("port", srv.Port()).Msg("clipkit is serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	return srv.Shutdown()
}

func ensureDataDirs() error {
	for _, dir := range []string{cfg.VideosDir(), cfg.SubtitlesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
