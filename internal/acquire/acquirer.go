package acquire

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"resyncd/internal/config"
	"resyncd/internal/logging"
	"resyncd/internal/media/ffprobe"
	"resyncd/internal/services"
)

// Kind selects which media stream a request is after.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Request describes one source to download.
type Request struct {
	URL        string
	OutputPath string
	Kind       Kind
	// MaxDuration rejects sources longer than this many seconds before any
	// bytes are transferred. Zero disables the check.
	MaxDuration float64
}

// Result reports a completed download.
type Result struct {
	Path string
	Meta Metadata
}

// Acquirer downloads media sources through an ordered strategy chain:
// a plain HTTP fetch for direct media URLs, the yt-dlp extractor, and
// page-level fallbacks when the extractor is refused.
type Acquirer struct {
	cfg     *config.Config
	logger  *slog.Logger
	ytdlp   *YTDLP
	direct  *directFetcher
	scraper *scraper
	player  *youtubeFetcher
}

// New constructs an Acquirer from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Acquire.RequestTimeoutSec) * time.Second
	return &Acquirer{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "acquire"),
		ytdlp:   NewYTDLP(cfg.DownloaderBinary(), cfg.Paths.CookiesFile, timeout, logger),
		direct:  newDirectFetcher(timeout, cfg.Limits.MaxFileBytes),
		scraper: newScraper(timeout, logger),
		player:  newYouTubeFetcher(logger),
	}
}

// Extractor exposes the underlying yt-dlp wrapper for metadata and search.
func (a *Acquirer) Extractor() *YTDLP {
	return a.ytdlp
}

// Acquire downloads the requested source, retrying transient failures with
// capped exponential backoff and walking the fallback chain when the
// primary extractor is blocked.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "acquire", "request", "source url is required", nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "acquire", "request", "output path is required", nil)
	}

	result := Result{Path: req.OutputPath}

	// Probe metadata up front so oversized sources are rejected before a
	// single media byte moves. Probe failures are not fatal; direct URLs
	// and blocked extractors still download fine.
	if meta, err := a.ytdlp.Metadata(ctx, req.URL); err == nil {
		result.Meta = meta
		if req.MaxDuration > 0 && meta.Duration > req.MaxDuration {
			return result, services.Wrap(services.ErrValidation, "acquire", "precheck",
				fmt.Sprintf("source length %.0fs exceeds duration limit of %.0fs", meta.Duration, req.MaxDuration), nil)
		}
	} else {
		a.logger.Debug("metadata probe failed", logging.String("url", req.URL), logging.Error(err))
	}

	if isDirectMediaURL(req.URL) {
		if err := a.withRetry(ctx, func() error {
			return a.direct.Fetch(ctx, req.URL, req.OutputPath)
		}); err == nil {
			return result, a.validateDownload(ctx, req)
		} else if !blockSignal(err) {
			return result, err
		}
		a.logger.Warn("direct fetch refused, trying extractor", logging.String("url", req.URL))
	}

	err := a.withRetry(ctx, func() error {
		if req.Kind == KindAudio {
			return a.ytdlp.DownloadAudio(ctx, req.URL, req.OutputPath)
		}
		return a.ytdlp.DownloadVideo(ctx, req.URL, req.OutputPath)
	})
	if err == nil {
		return result, a.validateDownload(ctx, req)
	}
	if !blockSignal(err) {
		return result, err
	}

	a.logger.Warn("extractor blocked, trying fallbacks",
		logging.String("url", req.URL), logging.Error(err))

	if req.Kind == KindVideo && isYouTubeURL(req.URL) {
		if playerErr := a.player.Fetch(ctx, req.URL, req.OutputPath); playerErr == nil {
			return result, a.validateDownload(ctx, req)
		} else {
			a.logger.Warn("player api fallback failed", logging.Error(playerErr))
		}
	}

	if req.Kind == KindVideo {
		if scrapeErr := a.scraper.Fetch(ctx, req.URL, req.OutputPath, a.cfg.Limits.MaxFileBytes); scrapeErr == nil {
			return result, a.validateDownload(ctx, req)
		} else {
			a.logger.Warn("scrape fallback failed", logging.Error(scrapeErr))
		}
	}
	return result, err
}

// withRetry runs op with capped exponential backoff. Only transient
// failures are retried; classification errors surface immediately.
func (a *Acquirer) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Duration(a.cfg.Acquire.BackoffBaseSecs) * time.Second
	policy.MaxInterval = time.Duration(a.cfg.Acquire.BackoffMaxSecs) * time.Second

	attempts := a.cfg.Acquire.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	wrapped := func() error {
		err := op()
		if err != nil && !services.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx))
}

// validateDownload confirms the fetched file is present, inside the size
// cap, and playable. Invalid files are removed.
func (a *Acquirer) validateDownload(ctx context.Context, req Request) error {
	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return services.Wrap(services.ErrProcessing, "acquire", "validate", "download produced no file", err)
	}
	if max := a.cfg.Limits.MaxFileBytes; max > 0 && info.Size() > max {
		_ = os.Remove(req.OutputPath)
		return services.Wrap(services.ErrValidation, "acquire", "validate",
			fmt.Sprintf("downloaded file too large (%d bytes)", info.Size()), nil)
	}

	duration, err := ffprobe.Duration(ctx, a.cfg.FFprobeBinary(), req.OutputPath)
	if err != nil || duration <= 0 {
		_ = os.Remove(req.OutputPath)
		return services.Wrap(services.ErrProcessing, "acquire", "validate", "downloaded file is not playable", err)
	}
	return nil
}

func isYouTubeURL(url string) bool {
	return strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be")
}
