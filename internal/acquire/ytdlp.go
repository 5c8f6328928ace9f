package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"log/slog"

	"github.com/tidwall/gjson"

	"resyncd/internal/logging"
	"resyncd/internal/services"
)

const (
	// videoFormats prefers 1080p-capped quality and degrades gracefully.
	videoFormats = "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best"
	// videoFormatLastResort accepts literally anything the extractor has.
	videoFormatLastResort = "worst"
	// audioFormat is tried first for audio sources.
	audioFormat = "bestaudio/best"
)

// audioFormatFallbacks are SoundCloud progressive format ids tried in order
// when the best-audio selection is rejected.
var audioFormatFallbacks = []string{"http_mp3_128", "http_mp3_0", "mp3_0", "progressive_mp3"}

// toolRunner executes an external binary and returns stdout and stderr.
// Injectable for tests.
type toolRunner func(ctx context.Context, binary string, args ...string) (string, string, error)

func defaultToolRunner(ctx context.Context, binary string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Metadata is the subset of extractor metadata the pipeline needs.
type Metadata struct {
	Title     string
	Uploader  string
	Duration  float64
	Extractor string
	WebURL    string
}

// YTDLP wraps the yt-dlp binary.
type YTDLP struct {
	binary      string
	cookiesFile string
	timeout     time.Duration
	logger      *slog.Logger
	run         toolRunner
}

// NewYTDLP constructs a yt-dlp wrapper. cookiesFile may be empty.
func NewYTDLP(binary, cookiesFile string, timeout time.Duration, logger *slog.Logger) *YTDLP {
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &YTDLP{
		binary:      binary,
		cookiesFile: cookiesFile,
		timeout:     timeout,
		logger:      logging.NewComponentLogger(logger, "ytdlp"),
		run:         defaultToolRunner,
	}
}

// WithRunner injects a custom tool runner for tests.
func (y *YTDLP) WithRunner(r toolRunner) {
	if y != nil && r != nil {
		y.run = r
	}
}

func (y *YTDLP) baseArgs() []string {
	args := []string{"--no-playlist", "--no-warnings"}
	if y.cookiesFile != "" {
		if _, err := os.Stat(y.cookiesFile); err == nil {
			args = append(args, "--cookies", y.cookiesFile)
		} else {
			y.logger.Warn("cookies file missing, continuing without it",
				logging.String("path", y.cookiesFile))
		}
	}
	return args
}

// Metadata fetches extractor metadata for a URL without downloading.
func (y *YTDLP) Metadata(ctx context.Context, url string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	args := append(y.baseArgs(), "-J", url)
	stdout, stderr, err := y.run(ctx, y.binary, args...)
	if err != nil {
		return Metadata{}, wrapToolError("metadata", err, stderr)
	}
	return parseMetadata(stdout), nil
}

func parseMetadata(payload string) Metadata {
	root := gjson.Parse(payload)
	// Search results and playlists nest the entry.
	if entries := root.Get("entries"); entries.Exists() && len(entries.Array()) > 0 {
		root = entries.Array()[0]
	}
	return Metadata{
		Title:     root.Get("title").String(),
		Uploader:  root.Get("uploader").String(),
		Duration:  root.Get("duration").Float(),
		Extractor: root.Get("extractor").String(),
		WebURL:    root.Get("webpage_url").String(),
	}
}

// DownloadVideo fetches a video to outputPath, relaxing the format
// selection once if the preferred ladder is rejected.
func (y *YTDLP) DownloadVideo(ctx context.Context, url, outputPath string) error {
	err := y.download(ctx, url, outputPath, videoFormats, "--merge-output-format", "mp4")
	if err != nil && errorIsFormat(err) {
		y.logger.Warn("preferred formats rejected, accepting any", logging.String("url", url))
		return y.download(ctx, url, outputPath, videoFormatLastResort, "--merge-output-format", "mp4")
	}
	return err
}

// DownloadAudio fetches an audio track as MP3, walking the progressive
// format fallbacks when the best-audio selection is rejected.
func (y *YTDLP) DownloadAudio(ctx context.Context, url, outputPath string) error {
	extract := []string{"-x", "--audio-format", "mp3", "--audio-quality", "192K"}
	err := y.download(ctx, url, outputPath, audioFormat, extract...)
	if err == nil || !errorIsFormat(err) {
		return err
	}
	for _, format := range audioFormatFallbacks {
		y.logger.Warn("retrying with fallback audio format",
			logging.String("format", format), logging.String("url", url))
		if err = y.download(ctx, url, outputPath, format, extract...); err == nil {
			return nil
		}
		if !errorIsFormat(err) {
			return err
		}
	}
	return err
}

func (y *YTDLP) download(ctx context.Context, url, outputPath, format string, extra ...string) error {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	args := append(y.baseArgs(), "-f", format, "-o", outputPath)
	args = append(args, extra...)
	args = append(args, url)

	y.logger.Debug("running yt-dlp",
		logging.String("url", url),
		logging.String("format", format))

	if _, stderr, err := y.run(ctx, y.binary, args...); err != nil {
		return wrapToolError("download", err, stderr)
	}
	return nil
}

// searchPrefixes map catalog platforms onto yt-dlp search extractors.
var searchPrefixes = map[string]string{
	"soundcloud": "scsearch1:",
	"youtube":    "ytsearch1:",
	"spotify":    "ytsearch1:",
}

// Search runs a single-result extractor search and returns the entry's
// metadata. platform selects the search extractor, defaulting to YouTube.
func (y *YTDLP) Search(ctx context.Context, platform, query string) (Metadata, error) {
	prefix, ok := searchPrefixes[strings.ToLower(platform)]
	if !ok {
		prefix = searchPrefixes["youtube"]
	}

	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	args := append(y.baseArgs(), "-J", "--flat-playlist", prefix+query)
	stdout, stderr, err := y.run(ctx, y.binary, args...)
	if err != nil {
		return Metadata{}, wrapToolError("search", err, stderr)
	}

	entries := gjson.Get(stdout, "entries")
	if !entries.Exists() || len(entries.Array()) == 0 {
		return Metadata{}, services.Wrap(services.ErrNotFound, "acquire", "search",
			fmt.Sprintf("no results for %q", query), nil)
	}
	entry := entries.Array()[0]
	meta := Metadata{
		Title:    entry.Get("title").String(),
		Uploader: entry.Get("uploader").String(),
		Duration: entry.Get("duration").Float(),
		WebURL:   entry.Get("webpage_url").String(),
	}
	if meta.WebURL == "" {
		meta.WebURL = entry.Get("url").String()
	}
	return meta, nil
}

func wrapToolError(operation string, err error, stderr string) error {
	marker := classifyOutput(stderr)
	message := firstLine(stderr)
	if message == "" {
		message = "yt-dlp failed"
	}
	return services.Wrap(marker, "acquire", operation, message, err)
}

func errorIsFormat(err error) bool {
	return errors.Is(err, services.ErrUnsupportedFormat)
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
