package compose

import (
	"context"
	"os"
	"strings"

	"resyncd/internal/logging"
	"resyncd/internal/services"
)

const (
	// Main audio and SFX mix levels.
	mixFilter = "[1:a][2:a]amix=inputs=2:duration=first:weights=0.8 0.6," +
		"aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo[mixed]"
	overlayFilter = "[0:v]drawtext=text='" + OverlayText + "':" +
		"fontcolor=white@0.7:fontsize=h/25:x=w-tw-20:y=h-th-20[marked]"
)

// CombineRequest describes one final-assembly run.
type CombineRequest struct {
	VideoPath  string
	AudioPath  string
	SFXPath    string // optional third input mixed under the main audio
	OutputPath string
	// Overlay draws the service text onto the video. Overlay failures fall
	// back to a clean encode rather than failing the job.
	Overlay bool
}

// CombineResult reports what the assembly actually produced.
type CombineResult struct {
	OutputPath string
	// OverlaySkipped is true when the overlay was requested but the encode
	// had to retry without it.
	OverlaySkipped bool
}

// Combine muxes the video with the replacement audio in one ffmpeg pass.
// The video stream is copied unless an overlay forces a re-encode. When the
// overlay fails on a host without usable fonts, the pass is retried clean.
func (c *Compositor) Combine(ctx context.Context, req CombineRequest) (CombineResult, error) {
	result := CombineResult{OutputPath: req.OutputPath}

	if fileMissing(req.VideoPath) {
		return result, services.Wrap(services.ErrProcessing, "compose", "combine", "video file disappeared during processing", nil)
	}
	if fileMissing(req.AudioPath) {
		return result, services.Wrap(services.ErrProcessing, "compose", "combine", "audio file disappeared during processing", nil)
	}
	if req.SFXPath != "" && fileMissing(req.SFXPath) {
		c.logger.Warn("sfx file missing, mixing without it", logging.String("sfx", req.SFXPath))
		req.SFXPath = ""
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	c.logger.Debug("combining streams",
		logging.String("video", req.VideoPath),
		logging.String("audio", req.AudioPath),
		logging.Bool("sfx", req.SFXPath != ""),
		logging.Bool("overlay", req.Overlay))

	stderr, err := c.run(ctx, c.cfg.FFmpegBinary(), combineArgs(req, req.Overlay)...)
	if err != nil && req.Overlay && overlayFailure(stderr) {
		c.logger.Warn("overlay failed, retrying without it", logging.String("stderr", firstStderrLine(stderr)))
		stderr, err = c.run(ctx, c.cfg.FFmpegBinary(), combineArgs(req, false)...)
		if err == nil {
			result.OverlaySkipped = true
		}
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, services.Wrap(services.ErrTimeout, "compose", "combine", "video processing took too long", err)
		}
		return result, services.Wrap(services.ErrExternalTool, "compose", "combine", firstStderrLine(stderr), err)
	}

	if err := c.validateOutput(ctx, req.OutputPath); err != nil {
		return result, err
	}
	return result, nil
}

// combineArgs builds the ffmpeg argument list for one assembly attempt.
func combineArgs(req CombineRequest, overlay bool) []string {
	args := []string{"-y", "-i", req.VideoPath, "-i", req.AudioPath}
	if req.SFXPath != "" {
		args = append(args, "-i", req.SFXPath)
	}

	switch {
	case req.SFXPath != "" && overlay:
		args = append(args,
			"-filter_complex", mixFilter+";"+overlayFilter,
			"-map", "[marked]", "-map", "[mixed]",
			"-c:v", "libx264", "-preset", "veryfast",
		)
	case req.SFXPath != "":
		args = append(args,
			"-filter_complex", mixFilter,
			"-map", "0:v:0", "-map", "[mixed]",
			"-c:v", "copy",
		)
	case overlay:
		args = append(args,
			"-filter_complex", overlayFilter,
			"-map", "[marked]", "-map", "1:a:0",
			"-c:v", "libx264", "-preset", "veryfast",
		)
	default:
		args = append(args,
			"-map", "0:v:0", "-map", "1:a:0",
			"-c:v", "copy",
		)
	}

	return append(args,
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-ac", "2",
		"-shortest",
		"-movflags", "+faststart",
		"-threads", "0",
		req.OutputPath,
	)
}

// overlayFailure recognizes stderr from hosts that cannot render drawtext,
// usually missing font configuration.
func overlayFailure(stderr string) bool {
	return strings.Contains(stderr, "drawtext") ||
		strings.Contains(stderr, "fontfile") ||
		strings.Contains(stderr, "Invalid argument")
}

// Remove deletes intermediate files, ignoring paths that are already gone.
func Remove(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		_ = os.Remove(path)
	}
}
