package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateAcquire(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.CookiesFile != "" {
		if info, err := os.Stat(c.Paths.CookiesFile); err == nil && info.IsDir() {
			return fmt.Errorf("paths.cookies_file %q is a directory", c.Paths.CookiesFile)
		}
	}
	return nil
}

func (c *Config) validateQueue() error {
	return ensurePositiveMap(map[string]int{
		"queue.priority_workers":  c.Queue.PriorityWorkers,
		"queue.standard_workers":  c.Queue.StandardWorkers,
		"queue.priority_capacity": c.Queue.PriorityCapacity,
		"queue.standard_capacity": c.Queue.StandardCapacity,
	})
}

func (c *Config) validateLimits() error {
	if err := ensurePositiveMap(map[string]int{
		"limits.max_output_seconds":      c.Limits.MaxOutputSeconds,
		"limits.max_source_seconds":      c.Limits.MaxSourceSeconds,
		"limits.max_download_seconds":    c.Limits.MaxDownloadSeconds,
		"limits.compose_timeout_seconds": c.Limits.ComposeTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Limits.MaxFileBytes <= 0 {
		return errors.New("limits.max_file_bytes must be positive")
	}
	if c.Limits.MaxOutputSeconds > c.Limits.MaxSourceSeconds {
		return errors.New("limits.max_output_seconds must not exceed limits.max_source_seconds")
	}
	return nil
}

func (c *Config) validateAcquire() error {
	if err := ensurePositiveMap(map[string]int{
		"acquire.max_attempts":            c.Acquire.MaxAttempts,
		"acquire.backoff_base_seconds":    c.Acquire.BackoffBaseSecs,
		"acquire.backoff_max_seconds":     c.Acquire.BackoffMaxSecs,
		"acquire.request_timeout_seconds": c.Acquire.RequestTimeoutSec,
	}); err != nil {
		return err
	}
	if c.Acquire.BackoffMaxSecs < c.Acquire.BackoffBaseSecs {
		return errors.New("acquire.backoff_max_seconds must be >= acquire.backoff_base_seconds")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if err := ensurePositiveMap(map[string]int{
		"analysis.sample_rate":             c.Analysis.SampleRate,
		"analysis.excerpt_seconds":         c.Analysis.ExcerptSeconds,
		"analysis.waveform_search_seconds": c.Analysis.WaveformSearchSecs,
		"analysis.beat_search_seconds":     c.Analysis.BeatSearchSecs,
		"analysis.beat_excerpt_seconds":    c.Analysis.BeatExcerptSecs,
		"analysis.tempo_segment_seconds":   c.Analysis.TempoSegmentSecs,
	}); err != nil {
		return err
	}
	if c.Analysis.BeatExcerptSecs > c.Analysis.BeatSearchSecs {
		return errors.New("analysis.beat_excerpt_seconds must not exceed analysis.beat_search_seconds")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.MinIntervalSeconds < 0 {
		return errors.New("notifications.min_interval_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
