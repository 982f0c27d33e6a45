package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clipkit/clipkit/internal/config"
)

var (
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	cfgFile string
	cfg     config.Settings
)

// rootCmd is the base command when clipkit is called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "clipkit <command>",
	Short: "clipkit serves subtitle-aware video clips over HTTP",
	Long: `clipkit ingests uploaded video files, prepares a searchable
transcript for each through embedded/external/ASR fall-through, and
cuts matching sub-clips on demand.

Example:
  clipkit serve --config ./clipkit.yaml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = settings
		level, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it. It is
// called exactly once, from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/clipkit/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(videosCmd)
}
