package acquire

import (
	"context"
	"io"
	"os"

	"log/slog"

	"github.com/kkdai/youtube/v2"

	"resyncd/internal/logging"
	"resyncd/internal/services"
)

// youtubeFetcher downloads YouTube sources through the site's player API
// without shelling out. Used when the yt-dlp binary is missing or refused.
type youtubeFetcher struct {
	client youtube.Client
	logger *slog.Logger
}

func newYouTubeFetcher(logger *slog.Logger) *youtubeFetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &youtubeFetcher{
		logger: logging.NewComponentLogger(logger, "youtube"),
	}
}

// Fetch downloads the best progressive format capped at 1080p.
func (f *youtubeFetcher) Fetch(ctx context.Context, url, outputPath string) error {
	video, err := f.client.GetVideoContext(ctx, url)
	if err != nil {
		return services.Wrap(classifyOutput(err.Error()), "acquire", "youtube", "video lookup failed", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return services.Wrap(services.ErrUnsupportedFormat, "acquire", "youtube",
			"no muxed formats available", nil)
	}

	best := &formats[0]
	for i := range formats {
		format := &formats[i]
		if format.Height > 1080 {
			continue
		}
		if best.Height > 1080 || format.Height > best.Height {
			best = format
		}
	}

	stream, _, err := f.client.GetStreamContext(ctx, video, best)
	if err != nil {
		return services.Wrap(services.ErrNetwork, "acquire", "youtube", "stream open failed", err)
	}
	defer stream.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return services.Wrap(services.ErrProcessing, "acquire", "youtube", "cannot create output file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, stream); err != nil {
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrNetwork, "acquire", "youtube", "stream copy failed", err)
	}

	f.logger.Debug("downloaded via player api",
		logging.String("title", video.Title),
		logging.Int("height", best.Height))
	return nil
}
