package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeQueue()
	c.normalizeLimits()
	c.normalizeAcquire()
	c.normalizeAnalysis()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if c.Paths.CookiesFile == "" {
		if value, ok := os.LookupEnv("RESYNCD_COOKIES_FILE"); ok {
			c.Paths.CookiesFile = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.CookiesFile) != "" {
		if c.Paths.CookiesFile, err = expandPath(c.Paths.CookiesFile); err != nil {
			return fmt.Errorf("paths.cookies_file: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.CatalogPath) != "" {
		if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
			return fmt.Errorf("paths.catalog_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	c.Tools.Downloader = strings.TrimSpace(c.Tools.Downloader)
	c.Tools.FontFile = strings.TrimSpace(c.Tools.FontFile)
}

func (c *Config) normalizeQueue() {
	if c.Queue.PriorityWorkers <= 0 {
		c.Queue.PriorityWorkers = defaultPriorityWorkers
	}
	if c.Queue.StandardWorkers <= 0 {
		c.Queue.StandardWorkers = defaultStandardWorkers
	}
	if c.Queue.PriorityCapacity <= 0 {
		c.Queue.PriorityCapacity = defaultQueueCapacity
	}
	if c.Queue.StandardCapacity <= 0 {
		c.Queue.StandardCapacity = defaultQueueCapacity
	}
}

func (c *Config) normalizeLimits() {
	if c.Limits.MaxOutputSeconds <= 0 {
		c.Limits.MaxOutputSeconds = defaultMaxOutputSeconds
	}
	if c.Limits.MaxSourceSeconds <= 0 {
		c.Limits.MaxSourceSeconds = defaultMaxSourceSeconds
	}
	if c.Limits.MaxDownloadSeconds <= 0 {
		c.Limits.MaxDownloadSeconds = defaultMaxDownloadSeconds
	}
	if c.Limits.MaxFileBytes <= 0 {
		c.Limits.MaxFileBytes = defaultMaxFileBytes
	}
	if c.Limits.ComposeTimeoutSeconds <= 0 {
		c.Limits.ComposeTimeoutSeconds = defaultComposeTimeoutSecs
	}
}

func (c *Config) normalizeAcquire() {
	if c.Acquire.MaxAttempts <= 0 {
		c.Acquire.MaxAttempts = defaultAcquireMaxAttempts
	}
	if c.Acquire.BackoffBaseSecs <= 0 {
		c.Acquire.BackoffBaseSecs = defaultAcquireBackoffBase
	}
	if c.Acquire.BackoffMaxSecs <= 0 {
		c.Acquire.BackoffMaxSecs = defaultAcquireBackoffMax
	}
	if c.Acquire.RequestTimeoutSec <= 0 {
		c.Acquire.RequestTimeoutSec = defaultAcquireRequestTimeout
	}
}

func (c *Config) normalizeAnalysis() {
	if c.Analysis.SampleRate <= 0 {
		c.Analysis.SampleRate = defaultSampleRate
	}
	if c.Analysis.ExcerptSeconds <= 0 {
		c.Analysis.ExcerptSeconds = defaultExcerptSeconds
	}
	if c.Analysis.WaveformSearchSecs <= 0 {
		c.Analysis.WaveformSearchSecs = defaultWaveformSearchSecs
	}
	if c.Analysis.BeatSearchSecs <= 0 {
		c.Analysis.BeatSearchSecs = defaultBeatSearchSecs
	}
	if c.Analysis.BeatExcerptSecs <= 0 {
		c.Analysis.BeatExcerptSecs = defaultBeatExcerptSecs
	}
	if c.Analysis.TempoSegmentSecs <= 0 {
		c.Analysis.TempoSegmentSecs = defaultTempoSegmentSecs
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.MinIntervalSeconds <= 0 {
		c.Notifications.MinIntervalSeconds = defaultNotifyMinInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
