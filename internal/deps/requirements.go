package deps

import (
	"fmt"
	"strings"

	"resyncd/internal/config"
)

// Required returns the external binaries resyncd needs before any pipeline
// can run. The downloader is optional for jobs that only hit direct CDN URLs,
// but every compose and probe path needs ffmpeg and ffprobe.
func Required(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Trims, mixes, and encodes output media",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Inspects downloaded and composed media",
		},
		{
			Name:        "Downloader",
			Command:     cfg.DownloaderBinary(),
			Description: "Extracts media from remote platforms",
			Optional:    true,
		},
	}
}

// Verify checks the required binaries and returns an error naming every
// missing non-optional dependency.
func Verify(cfg *config.Config) error {
	var missing []string
	for _, status := range CheckBinaries(Required(cfg)) {
		if status.Available || status.Optional {
			continue
		}
		missing = append(missing, fmt.Sprintf("%s (%s)", status.Name, status.Command))
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
	}
	return nil
}
