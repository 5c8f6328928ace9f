package compose

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"log/slog"

	"resyncd/internal/config"
	"resyncd/internal/logging"
	"resyncd/internal/media/ffprobe"
	"resyncd/internal/services"
)

// OverlayText is drawn onto the video for requests without overlay-free
// access.
const OverlayText = "ResyncBot"

// commandRunner executes an external binary and returns its stderr output.
// Injectable for tests.
type commandRunner func(ctx context.Context, binary string, args ...string) (string, error)

func defaultCommandRunner(ctx context.Context, binary string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// Compositor builds the final remix video with ffmpeg: trimming sources,
// mixing audio tracks, and drawing the service overlay.
type Compositor struct {
	cfg    *config.Config
	logger *slog.Logger
	run    commandRunner
}

// NewCompositor constructs a Compositor from configuration.
func NewCompositor(cfg *config.Config, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compositor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "compose"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner injects a custom command runner for tests.
func (c *Compositor) WithCommandRunner(r commandRunner) {
	if c != nil && r != nil {
		c.run = r
	}
}

func (c *Compositor) timeout() time.Duration {
	secs := c.cfg.Limits.ComposeTimeoutSeconds
	if secs <= 0 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}

func (c *Compositor) maxOutputSeconds() float64 {
	if c.cfg.Limits.MaxOutputSeconds <= 0 {
		return 60
	}
	return float64(c.cfg.Limits.MaxOutputSeconds)
}

// TrimVideo cuts the source to a clip starting at start seconds. An
// explicit duration is honoured as given; zero falls back to the configured
// output limit. Standard quality downscales to 1280 wide and favours encode
// speed; high quality keeps the source resolution at a higher rate factor.
func (c *Compositor) TrimVideo(ctx context.Context, inputPath, outputPath string, start, duration float64, highQuality bool) error {
	if duration <= 0 {
		duration = c.maxOutputSeconds()
	}
	if start < 0 {
		start = 0
	}

	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", inputPath,
		"-t", formatSeconds(duration),
	}
	if highQuality {
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", "23",
		)
	} else {
		args = append(args,
			"-vf", "scale='min(1280,iw)':-2",
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", "28",
			"-tune", "fastdecode",
			"-x264-params", "ref=1:me=hex:subme=1",
		)
	}
	args = append(args,
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-threads", "0",
		outputPath,
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	c.logger.Debug("trimming video",
		logging.String("input", inputPath),
		logging.Float64("start", start),
		logging.Float64("duration", duration),
		logging.Bool("high_quality", highQuality))

	if stderr, err := c.run(ctx, c.cfg.FFmpegBinary(), args...); err != nil {
		return trimError(ctx, "trim_video", err, stderr)
	}
	return nil
}

// TrimAudio cuts the audio source starting at offset without re-encoding.
// An explicit duration is honoured as given; zero falls back to the
// configured output limit.
func (c *Compositor) TrimAudio(ctx context.Context, inputPath, outputPath string, offset, duration float64) error {
	if duration <= 0 {
		duration = c.maxOutputSeconds()
	}
	if offset < 0 {
		offset = 0
	}

	args := []string{
		"-y",
		"-ss", formatSeconds(offset),
		"-i", inputPath,
		"-t", formatSeconds(duration),
		"-c", "copy",
		outputPath,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	if stderr, err := c.run(ctx, c.cfg.FFmpegBinary(), args...); err != nil {
		return trimError(ctx, "trim_audio", err, stderr)
	}
	return nil
}

// ExtractAudio pulls the audio track out of a video file as an MP3.
func (c *Compositor) ExtractAudio(ctx context.Context, videoPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", "192k",
		outputPath,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	if stderr, err := c.run(ctx, c.cfg.FFmpegBinary(), args...); err != nil {
		return trimError(ctx, "extract_audio", err, stderr)
	}
	return nil
}

func trimError(ctx context.Context, operation string, err error, stderr string) error {
	marker := services.ErrExternalTool
	if ctx.Err() == context.DeadlineExceeded {
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, "compose", operation, firstStderrLine(stderr), err)
}

func firstStderrLine(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return "ffmpeg failed"
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// fileMissing reports whether a required input disappeared mid-pipeline.
func fileMissing(path string) bool {
	_, err := os.Stat(path)
	return err != nil
}

// validateOutput probes the produced file and removes it when it is not a
// playable video.
func (c *Compositor) validateOutput(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrProcessing, "compose", "validate", "output file was not created", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(path)
		return services.Wrap(services.ErrProcessing, "compose", "validate", "output file is empty", nil)
	}

	duration, err := ffprobe.Duration(ctx, c.cfg.FFprobeBinary(), path)
	if err != nil || duration <= 0 {
		_ = os.Remove(path)
		return services.Wrap(services.ErrProcessing, "compose", "validate", "output video is corrupted", err)
	}
	return nil
}
