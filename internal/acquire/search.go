package acquire

import (
	"context"
	"fmt"

	"resyncd/internal/services"
	"resyncd/internal/textutil"
)

// FindTrack searches the platform for a catalog track and returns the
// matching entry. The top result is accepted only when its title actually
// mentions the artist or the track name; search extractors happily return
// unrelated uploads for obscure queries.
func (a *Acquirer) FindTrack(ctx context.Context, platform, artist, title string) (Metadata, error) {
	query := fmt.Sprintf("%s - %s", artist, title)
	meta, err := a.ytdlp.Search(ctx, platform, query)
	if err != nil {
		return Metadata{}, err
	}
	if !textutil.TitleMatches(meta.Title, artist, title) {
		return Metadata{}, services.Wrap(services.ErrNotFound, "acquire", "search",
			fmt.Sprintf("top result %q does not match %q", meta.Title, query), nil)
	}
	if meta.WebURL == "" {
		return Metadata{}, services.Wrap(services.ErrNotFound, "acquire", "search",
			"search result carries no usable url", nil)
	}
	return meta, nil
}

// AcquireTrack searches for a catalog track and downloads its audio.
func (a *Acquirer) AcquireTrack(ctx context.Context, platform, artist, title, outputPath string) (Result, error) {
	meta, err := a.FindTrack(ctx, platform, artist, title)
	if err != nil {
		return Result{}, err
	}
	result, err := a.Acquire(ctx, Request{
		URL:         meta.WebURL,
		OutputPath:  outputPath,
		Kind:        KindAudio,
		MaxDuration: float64(a.cfg.Limits.MaxDownloadSeconds),
	})
	if err != nil {
		return result, err
	}
	result.Meta = meta
	return result, nil
}
