package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
	CookiesFile  string `toml:"cookies_file"`
	CatalogPath  string `toml:"catalog_path"`
}

// Tools contains executable names or paths for external binaries.
type Tools struct {
	FFmpeg     string `toml:"ffmpeg"`
	FFprobe    string `toml:"ffprobe"`
	Downloader string `toml:"downloader"`
	FontFile   string `toml:"font_file"`
}

// Queue contains scheduler sizing configuration.
type Queue struct {
	PriorityWorkers  int `toml:"priority_workers"`
	StandardWorkers  int `toml:"standard_workers"`
	PriorityCapacity int `toml:"priority_capacity"`
	StandardCapacity int `toml:"standard_capacity"`
}

// Limits contains duration and size caps enforced before and during processing.
type Limits struct {
	MaxOutputSeconds      int   `toml:"max_output_seconds"`
	MaxSourceSeconds      int   `toml:"max_source_seconds"`
	MaxDownloadSeconds    int   `toml:"max_download_seconds"`
	MaxFileBytes          int64 `toml:"max_file_bytes"`
	ComposeTimeoutSeconds int   `toml:"compose_timeout_seconds"`
}

// Acquire contains retry and fallback tuning for media acquisition.
type Acquire struct {
	MaxAttempts       int `toml:"max_attempts"`
	BackoffBaseSecs   int `toml:"backoff_base_seconds"`
	BackoffMaxSecs    int `toml:"backoff_max_seconds"`
	RequestTimeoutSec int `toml:"request_timeout_seconds"`
}

// Analysis contains temporal alignment tuning.
type Analysis struct {
	SampleRate         int `toml:"sample_rate"`
	ExcerptSeconds     int `toml:"excerpt_seconds"`
	WaveformSearchSecs int `toml:"waveform_search_seconds"`
	BeatSearchSecs     int `toml:"beat_search_seconds"`
	BeatExcerptSecs    int `toml:"beat_excerpt_seconds"`
	TempoSegmentSecs   int `toml:"tempo_segment_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	MinIntervalSeconds int    `toml:"min_interval_seconds"`
	Progress           bool   `toml:"progress"`
	Errors             bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for resyncd.
//
// Configuration sections by subsystem:
//   - Paths: workspace, output, log, database, cookies, catalog locations
//   - Tools: external binaries (ffmpeg, ffprobe, downloader)
//   - Queue: worker counts and queue capacities
//   - Limits: duration/size caps and compose timeout
//   - Acquire: download retry and backoff tuning
//   - Analysis: alignment sample rate and window sizes
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Queue         Queue         `toml:"queue"`
	Limits        Limits        `toml:"limits"`
	Acquire       Acquire       `toml:"acquire"`
	Analysis      Analysis      `toml:"analysis"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/resyncd/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/resyncd/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("resyncd.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for operation. OutputDir is
// created on a best-effort basis so jobs can be accepted when external storage
// is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	if dir := filepath.Dir(c.Paths.DatabasePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for trims and composition.
func (c *Config) FFmpegBinary() string {
	if b := strings.TrimSpace(c.Tools.FFmpeg); b != "" {
		return b
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if b := strings.TrimSpace(c.Tools.FFprobe); b != "" {
		return b
	}
	return "ffprobe"
}

// DownloaderBinary returns the extractor executable used for remote acquisition.
func (c *Config) DownloaderBinary() string {
	if b := strings.TrimSpace(c.Tools.Downloader); b != "" {
		return b
	}
	return "yt-dlp"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
