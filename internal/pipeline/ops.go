package pipeline

import (
	"context"
	"fmt"

	"resyncd/internal/acquire"
	"resyncd/internal/align"
	"resyncd/internal/compose"
	"resyncd/internal/logging"
	"resyncd/internal/media/ffprobe"
	"resyncd/internal/media/pcm"
	"resyncd/internal/scheduler"
	"resyncd/internal/services"
)

// runResync builds a remix with caller-supplied synchronization marks.
func (p *Pipeline) runResync(ctx context.Context, job scheduler.Job, params ResyncParams) error {
	videoStart := 0.0
	if params.VideoStart != "" {
		parsed, err := ParseTimestamp(params.VideoStart)
		if err != nil {
			return err
		}
		videoStart = parsed
	}
	audioOffset := 0.0
	if params.AudioOffset != "" {
		parsed, err := ParseOffset(params.AudioOffset)
		if err != nil {
			return err
		}
		audioOffset = parsed
	}

	ws, err := newWorkspace(p.cfg.Paths.WorkspaceDir, job.ID, p.logger)
	if err != nil {
		return err
	}
	defer ws.cleanup()

	reporter := p.reporter(job.ID)
	reporter.report(ctx, "starting", progressStarting)

	reporter.report(ctx, "downloading video", progressAcquireVideo)
	videoResult, err := p.acquirer.Acquire(ctx, acquire.Request{
		URL:         params.VideoURL,
		OutputPath:  ws.path("source_video.mp4"),
		Kind:        acquire.KindVideo,
		MaxDuration: float64(p.cfg.Limits.MaxSourceSeconds),
	})
	if err != nil {
		return err
	}

	reporter.report(ctx, "downloading audio", progressAcquireAudio)
	if _, err := p.acquirer.Acquire(ctx, acquire.Request{
		URL:         params.AudioURL,
		OutputPath:  ws.path("source_audio.mp3"),
		Kind:        acquire.KindAudio,
		MaxDuration: float64(p.cfg.Limits.MaxDownloadSeconds),
	}); err != nil {
		return err
	}

	videoDuration, err := ffprobe.Duration(ctx, p.cfg.FFprobeBinary(), videoResult.Path)
	if err != nil {
		return services.Wrap(services.ErrProcessing, "pipeline", "probe",
			"downloaded video is not playable", err)
	}
	if videoStart >= videoDuration {
		return services.Wrap(services.ErrValidation, "pipeline", "resync",
			fmt.Sprintf("video start %.1fs exceeds duration %.1fs", videoStart, videoDuration), nil)
	}
	audioDuration, err := ffprobe.Duration(ctx, p.cfg.FFprobeBinary(), ws.path("source_audio.mp3"))
	if err != nil {
		return services.Wrap(services.ErrProcessing, "pipeline", "probe",
			"downloaded audio is not playable", err)
	}
	if audioOffset >= audioDuration {
		return services.Wrap(services.ErrValidation, "pipeline", "resync",
			fmt.Sprintf("audio offset %.1fs exceeds duration %.1fs", audioOffset, audioDuration), nil)
	}

	var sfxPath string
	if params.SFXURL != "" {
		if _, err := p.acquirer.Acquire(ctx, acquire.Request{
			URL:        params.SFXURL,
			OutputPath: ws.path("sfx.mp3"),
			Kind:       acquire.KindAudio,
		}); err != nil {
			// A missing SFX bed degrades the mix, not the job.
			p.logger.Warn("sfx download failed, continuing without it", logging.Error(err))
		} else {
			sfxPath = ws.path("sfx.mp3")
		}
	}

	return p.assemble(ctx, job, assembly{
		workspace:   ws,
		videoPath:   videoResult.Path,
		audioPath:   ws.path("source_audio.mp3"),
		sfxPath:     sfxPath,
		videoStart:  videoStart,
		audioOffset: audioOffset,
		highQuality: params.HighQuality,
		overlay:     params.Overlay,
		title:       outputTitle(videoResult.Meta, "resync"),
	})
}

// runAutoResync builds a remix with a detected alignment offset.
func (p *Pipeline) runAutoResync(ctx context.Context, job scheduler.Job, params AutoResyncParams) error {
	method := align.MethodBoth
	switch params.Method {
	case "waveform":
		method = align.MethodWaveform
	case "beat":
		method = align.MethodBeat
	}

	ws, err := newWorkspace(p.cfg.Paths.WorkspaceDir, job.ID, p.logger)
	if err != nil {
		return err
	}
	defer ws.cleanup()

	reporter := p.reporter(job.ID)
	reporter.report(ctx, "starting", progressStarting)

	reporter.report(ctx, "downloading video", progressAcquireVideo)
	videoResult, err := p.acquirer.Acquire(ctx, acquire.Request{
		URL:         params.VideoURL,
		OutputPath:  ws.path("source_video.mp4"),
		Kind:        acquire.KindVideo,
		MaxDuration: float64(p.cfg.Limits.MaxSourceSeconds),
	})
	if err != nil {
		return err
	}

	reporter.report(ctx, "downloading audio", progressAcquireAudio)
	audioPath := ws.path("source_audio.mp3")
	if _, err := p.acquirer.Acquire(ctx, acquire.Request{
		URL:         params.AudioURL,
		OutputPath:  audioPath,
		Kind:        acquire.KindAudio,
		MaxDuration: float64(p.cfg.Limits.MaxDownloadSeconds),
	}); err != nil {
		return err
	}

	reporter.report(ctx, "analyzing audio", progressAnalyze)
	audioDuration, err := ffprobe.Duration(ctx, p.cfg.FFprobeBinary(), audioPath)
	if err != nil {
		return services.Wrap(services.ErrProcessing, "pipeline", "analyze", "audio track is not playable", err)
	}
	videoAudio := ws.path("video_audio.wav")
	if err := pcm.ExtractWAV(ctx, p.cfg.FFmpegBinary(), videoResult.Path, videoAudio, p.cfg.Analysis.SampleRate); err != nil {
		return services.Wrap(services.ErrProcessing, "pipeline", "extract",
			"could not extract the video's audio track", err)
	}

	reporter.report(ctx, "aligning", progressAlign)
	alignment := p.analyzer.Align(ctx, audioPath, videoAudio, audioDuration, method)
	p.logger.Info("alignment result",
		logging.String(logging.FieldJobID, job.ID),
		logging.Float64("offset", alignment.Offset),
		logging.String("agreement", string(alignment.Agreement)),
		logging.Bool("fallback", alignment.Fallback))

	return p.assemble(ctx, job, assembly{
		workspace:   ws,
		videoPath:   videoResult.Path,
		audioPath:   audioPath,
		audioOffset: alignment.Offset,
		highQuality: params.HighQuality,
		overlay:     params.Overlay,
		title:       outputTitle(videoResult.Meta, "autoresync"),
	})
}

// runRandomResync remixes a video against a random tempo-matched catalog
// track.
func (p *Pipeline) runRandomResync(ctx context.Context, job scheduler.Job, params RandomResyncParams) error {
	ws, err := newWorkspace(p.cfg.Paths.WorkspaceDir, job.ID, p.logger)
	if err != nil {
		return err
	}
	defer ws.cleanup()

	reporter := p.reporter(job.ID)
	reporter.report(ctx, "starting", progressStarting)

	reporter.report(ctx, "downloading video", progressAcquireVideo)
	videoResult, err := p.acquirer.Acquire(ctx, acquire.Request{
		URL:         params.VideoURL,
		OutputPath:  ws.path("source_video.mp4"),
		Kind:        acquire.KindVideo,
		MaxDuration: float64(p.cfg.Limits.MaxSourceSeconds),
	})
	if err != nil {
		return err
	}

	reporter.report(ctx, "extracting audio", progressAcquireAudio)
	videoAudio := ws.path("video_audio.mp3")
	if err := p.compositor.ExtractAudio(ctx, videoResult.Path, videoAudio); err != nil {
		return err
	}

	reporter.report(ctx, "detecting tempo", progressAnalyze)
	bpm, err := p.analyzer.TrackTempo(ctx, videoAudio)
	if err != nil {
		return services.Wrap(services.ErrProcessing, "pipeline", "tempo",
			"could not detect a tempo in the video's audio", err)
	}

	reporter.report(ctx, "selecting track", progressTrackSelection)
	track, err := p.catalog.PickTempo(float64(bpm), params.Tolerance)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "pipeline", "tempo",
			err.Error(), err)
	}

	trackPath := ws.path("track.mp3")
	if track.URL != "" {
		_, err = p.acquirer.Acquire(ctx, acquire.Request{
			URL:         track.URL,
			OutputPath:  trackPath,
			Kind:        acquire.KindAudio,
			MaxDuration: float64(p.cfg.Limits.MaxDownloadSeconds),
		})
	} else {
		_, err = p.acquirer.AcquireTrack(ctx, track.Platform, track.Artist, track.Title, trackPath)
	}
	if err != nil {
		return err
	}

	reporter.report(ctx, "aligning", progressAlign)
	trackDuration, durErr := ffprobe.Duration(ctx, p.cfg.FFprobeBinary(), trackPath)
	if durErr != nil {
		trackDuration = 0
	}
	alignment := p.analyzer.Align(ctx, trackPath, videoAudio, trackDuration, align.MethodBoth)

	return p.assemble(ctx, job, assembly{
		workspace:   ws,
		videoPath:   videoResult.Path,
		audioPath:   trackPath,
		audioOffset: alignment.Offset,
		highQuality: params.HighQuality,
		overlay:     params.Overlay,
		title:       outputTitle(videoResult.Meta, track.Title),
	})
}

// runDownload fetches a source and delivers it untouched apart from an
// optional trim.
func (p *Pipeline) runDownload(ctx context.Context, job scheduler.Job, params DownloadParams) error {
	ws, err := newWorkspace(p.cfg.Paths.WorkspaceDir, job.ID, p.logger)
	if err != nil {
		return err
	}
	defer ws.cleanup()

	reporter := p.reporter(job.ID)
	reporter.report(ctx, "starting", progressStarting)

	kind := acquire.KindVideo
	ext := ".mp4"
	if params.AudioOnly {
		kind = acquire.KindAudio
		ext = ".mp3"
	}

	reporter.report(ctx, "downloading", progressAcquireVideo)
	sourcePath := ws.path("source" + ext)
	result, err := p.acquirer.Acquire(ctx, acquire.Request{
		URL:         params.URL,
		OutputPath:  sourcePath,
		Kind:        kind,
		MaxDuration: float64(p.cfg.Limits.MaxDownloadSeconds),
	})
	if err != nil {
		return err
	}

	deliverPath := result.Path
	if params.Start != "" || params.End != "" {
		start := 0.0
		if params.Start != "" {
			if start, err = ParseTimestamp(params.Start); err != nil {
				return err
			}
		}
		duration := 0.0
		if params.End != "" {
			end, err := ParseTimestamp(params.End)
			if err != nil {
				return err
			}
			if end <= start {
				return services.Wrap(services.ErrValidation, "pipeline", "trim",
					"end timestamp must come after start", nil)
			}
			duration = end - start
		}

		// Download trims are bounded by the download limits, not the remix
		// output length. High quality video keeps the larger allowance.
		limit := float64(p.cfg.Limits.MaxSourceSeconds)
		if !params.AudioOnly && params.HighQuality {
			limit = float64(p.cfg.Limits.MaxDownloadSeconds)
		}
		if duration <= 0 || duration > limit {
			duration = limit
		}

		reporter.report(ctx, "trimming", progressAlign)
		trimmed := ws.path("trimmed" + ext)
		if params.AudioOnly {
			err = p.compositor.TrimAudio(ctx, result.Path, trimmed, start, duration)
		} else {
			err = p.compositor.TrimVideo(ctx, result.Path, trimmed, start, duration, params.HighQuality)
		}
		if err != nil {
			return err
		}
		deliverPath = trimmed
	}

	reporter.report(ctx, "delivering", progressDeliver)
	_, err = p.deliver(ctx, job.ID, deliverPath, outputTitle(result.Meta, "download"), ext)
	return err
}

// assembly carries the shared tail of every remix operation: trim both
// sources, combine them, and deliver the result.
type assembly struct {
	workspace   *workspace
	videoPath   string
	audioPath   string
	sfxPath     string
	videoStart  float64
	audioOffset float64
	highQuality bool
	overlay     bool
	title       string
}

func (p *Pipeline) assemble(ctx context.Context, job scheduler.Job, a assembly) error {
	reporter := p.reporter(job.ID)

	reporter.report(ctx, "trimming", progressAlign)
	trimmedVideo := a.workspace.path("video_trimmed.mp4")
	if err := p.compositor.TrimVideo(ctx, a.videoPath, trimmedVideo, a.videoStart, 0, a.highQuality); err != nil {
		return err
	}
	trimmedAudio := a.workspace.path("audio_trimmed.mp3")
	if err := p.compositor.TrimAudio(ctx, a.audioPath, trimmedAudio, a.audioOffset, 0); err != nil {
		return err
	}

	reporter.report(ctx, "compositing", progressCompose)
	combined := a.workspace.path("combined.mp4")
	result, err := p.compositor.Combine(ctx, compose.CombineRequest{
		VideoPath:  trimmedVideo,
		AudioPath:  trimmedAudio,
		SFXPath:    a.sfxPath,
		OutputPath: combined,
		Overlay:    a.overlay,
	})
	if err != nil {
		return err
	}
	if result.OverlaySkipped {
		p.logger.Warn("delivered without overlay", logging.String(logging.FieldJobID, job.ID))
	}
	// The trimmed intermediates can be large; drop them before delivery
	// copies the combined output.
	compose.Remove(trimmedVideo, trimmedAudio)

	reporter.report(ctx, "validating", progressValidate)

	reporter.report(ctx, "delivering", progressDeliver)
	_, err = p.deliver(ctx, job.ID, combined, a.title, ".mp4")
	return err
}
