// Package config loads clipkit's configuration via viper: environment
// variables (prefix CLIPKIT_) take precedence over a YAML file in the
// XDG config directory (or the file passed with --config), which takes
// precedence over built-in defaults. No other command-line flags are
// bound into the configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Settings is clipkit's full runtime configuration.
type Settings struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Storage struct {
		DataDir string `mapstructure:"data_dir"`
	} `mapstructure:"storage"`

	Tools struct {
		FFmpegPath  string `mapstructure:"ffmpeg_path"`
		FFprobePath string `mapstructure:"ffprobe_path"`
		ASRPath     string `mapstructure:"asr_path"`
	} `mapstructure:"tools"`

	ASR struct {
		DefaultModel string `mapstructure:"default_model"`
	} `mapstructure:"asr"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// VideosDir is the directory holding original uploaded bytes.
func (s Settings) VideosDir() string { return filepath.Join(s.Storage.DataDir, "videos") }

// SubtitlesDir is the directory holding ASR-produced SRT artifacts.
func (s Settings) SubtitlesDir() string { return filepath.Join(s.Storage.DataDir, "subtitles") }

// DatabasePath is the sqlite file backing the Metadata Store Adapter.
func (s Settings) DatabasePath() string { return filepath.Join(s.Storage.DataDir, "clipkit.db") }

func getConfigPath() (string, error) {
	configDir := filepath.Join(xdg.ConfigHome, "clipkit")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Load reads configuration from customPath (if non-empty), else the XDG
// config file, falling back to defaults and writing them out if no file
// exists yet — mirroring the teacher's InitConfig/getConfigPath shape.
func Load(customPath string) (Settings, error) {
	v := viper.New()

	if customPath != "" {
		v.SetConfigFile(customPath)
	} else {
		path, err := getConfigPath()
		if err != nil {
			return Settings{}, err
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("clipkit")
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("tools.ffmpeg_path", "")
	v.SetDefault("tools.ffprobe_path", "")
	v.SetDefault("tools.asr_path", "")
	v.SetDefault("asr.default_model", "base")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if werr := v.SafeWriteConfigAs(v.ConfigFileUsed()); werr != nil && customPath == "" {
				return Settings{}, fmt.Errorf("writing default config: %w", werr)
			}
		} else {
			return Settings{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decoding config: %w", err)
	}
	return s, nil
}
