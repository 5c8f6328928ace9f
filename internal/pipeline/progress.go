package pipeline

import (
	"context"

	"log/slog"

	"resyncd/internal/jobstore"
	"resyncd/internal/logging"
	"resyncd/internal/notifications"
)

// Milestone percentages reported as a job moves through its stages.
const (
	progressStarting       = 5
	progressAcquireVideo   = 20
	progressAcquireAudio   = 30
	progressAnalyze        = 40
	progressAlign          = 60
	progressCompose        = 80
	progressValidate       = 90
	progressDeliver        = 95
	progressTrackSelection = 50
)

// progressReporter fans stage updates out to the job store and the
// notifier. Store failures are logged rather than surfaced so a flaky
// database write never kills an otherwise healthy job.
type progressReporter struct {
	store    *jobstore.Store
	notifier notifications.Service
	jobID    string
	logger   *slog.Logger
}

func (p *progressReporter) report(ctx context.Context, stage string, percent int) {
	if p == nil {
		return
	}
	p.logger.Info("progress",
		logging.String(logging.FieldJobID, p.jobID),
		logging.String(logging.FieldStage, stage),
		logging.Int("percent", percent))

	if p.store != nil {
		if err := p.store.SetProgress(ctx, p.jobID, stage, float64(percent)); err != nil {
			p.logger.Warn("progress persist failed", logging.Error(err))
		}
	}
	if p.notifier != nil {
		if err := p.notifier.NotifyJobProgress(ctx, p.jobID, stage, percent); err != nil {
			p.logger.Warn("progress notify failed", logging.Error(err))
		}
	}
}
