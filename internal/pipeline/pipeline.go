package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/google/uuid"

	"resyncd/internal/acquire"
	"resyncd/internal/align"
	"resyncd/internal/catalog"
	"resyncd/internal/compose"
	"resyncd/internal/config"
	"resyncd/internal/fileutil"
	"resyncd/internal/jobstore"
	"resyncd/internal/logging"
	"resyncd/internal/notifications"
	"resyncd/internal/scheduler"
	"resyncd/internal/services"
	"resyncd/internal/textutil"
)

// Pipeline owns the remix operations. It submits jobs to the scheduler,
// runs them through acquisition, alignment, and composition, and keeps
// the job store and notifier in sync with their progress.
type Pipeline struct {
	cfg        *config.Config
	store      *jobstore.Store
	sched      *scheduler.Scheduler
	acquirer   *acquire.Acquirer
	analyzer   *align.Analyzer
	compositor *compose.Compositor
	catalog    *catalog.Catalog
	notifier   notifications.Service
	logger     *slog.Logger
}

// New wires a Pipeline into the scheduler: every job kind gets a runner
// and the pipeline becomes the scheduler's lifecycle observer.
func New(cfg *config.Config, store *jobstore.Store, sched *scheduler.Scheduler, cat *catalog.Catalog, notifier notifications.Service, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	p := &Pipeline{
		cfg:        cfg,
		store:      store,
		sched:      sched,
		acquirer:   acquire.New(cfg, logger),
		analyzer:   align.NewAnalyzer(cfg.FFmpegBinary(), cfg.Analysis, logger),
		compositor: compose.NewCompositor(cfg, logger),
		catalog:    cat,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}

	for _, kind := range Kinds() {
		sched.Register(kind, scheduler.RunnerFunc(p.run))
	}
	sched.SetObserver(p)
	return p
}

// Submit validates and persists a job, then hands it to the scheduler. The
// returned record reflects the queued state.
func (p *Pipeline) Submit(ctx context.Context, kind string, params any, userID string, priority bool) (*jobstore.Record, error) {
	if err := validateParams(kind, params); err != nil {
		return nil, err
	}
	encoded, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	record := &jobstore.Record{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     userID,
		Priority:   priority,
		Status:     jobstore.StatusPending,
		ParamsJSON: encoded,
	}
	if err := p.store.Create(ctx, record); err != nil {
		return nil, err
	}

	queue, err := p.sched.Enqueue(scheduler.Job{
		ID:       record.ID,
		Kind:     kind,
		UserID:   userID,
		Priority: priority,
		Params:   encoded,
	})
	if err != nil {
		userMsg := "Processing failed: the service is busy, try again in a moment"
		_ = p.store.MarkFailed(ctx, record.ID, err.Error(), userMsg)
		return nil, err
	}

	record.Queue = queue
	if err := p.store.Update(ctx, record); err != nil {
		p.logger.Warn("queue assignment persist failed", logging.Error(err))
	}
	if err := p.notifier.NotifyJobQueued(ctx, record.ID, kind, queue); err != nil {
		p.logger.Warn("queued notify failed", logging.Error(err))
	}

	p.logger.Info("job submitted",
		logging.String(logging.FieldJobID, record.ID),
		logging.String("kind", kind),
		logging.String(logging.FieldQueue, queue),
		logging.Bool("priority", priority))
	return record, nil
}

// SubmitRaw decodes serialized parameters for the given kind and submits
// the job. RPC callers only carry the JSON payload.
func (p *Pipeline) SubmitRaw(ctx context.Context, kind, paramsJSON, userID string, priority bool) (*jobstore.Record, error) {
	params, err := decodeParamsForKind(kind, paramsJSON)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, kind, params, userID, priority)
}

// JobStarted implements scheduler.Observer.
func (p *Pipeline) JobStarted(job scheduler.Job, queue string, worker int) {
	ctx := context.Background()
	workerName := fmt.Sprintf("%s-%d", queue, worker)
	if err := p.store.MarkRunning(ctx, job.ID, queue, workerName); err != nil {
		p.logger.Warn("mark running failed", logging.Error(err))
	}
	if err := p.notifier.NotifyJobStarted(ctx, job.ID, job.Kind); err != nil {
		p.logger.Warn("started notify failed", logging.Error(err))
	}
}

// JobFinished implements scheduler.Observer.
func (p *Pipeline) JobFinished(job scheduler.Job, queue string, worker int, runErr error) {
	ctx := context.Background()
	record, err := p.store.GetByID(ctx, job.ID)
	if err != nil || record == nil {
		p.logger.Warn("finished job missing from store",
			logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		return
	}

	if runErr != nil {
		if err := p.store.MarkFailed(ctx, job.ID, runErr.Error(), services.UserMessage(runErr)); err != nil {
			p.logger.Warn("mark failed failed", logging.Error(err))
		}
		if err := p.notifier.NotifyJobFailed(ctx, job.ID, runErr); err != nil {
			p.logger.Warn("failure notify failed", logging.Error(err))
		}
		return
	}

	if err := p.store.MarkCompleted(ctx, job.ID, record.OutputPath); err != nil {
		p.logger.Warn("mark completed failed", logging.Error(err))
	}
	if err := p.notifier.NotifyJobCompleted(ctx, job.ID, record.OutputPath, record.RunDuration()); err != nil {
		p.logger.Warn("completion notify failed", logging.Error(err))
	}
}

// run dispatches one scheduled job to its operation.
func (p *Pipeline) run(ctx context.Context, job scheduler.Job) error {
	switch job.Kind {
	case KindResync:
		var params ResyncParams
		if err := decodeParams(job.Params, &params); err != nil {
			return err
		}
		return p.runResync(ctx, job, params)
	case KindAutoResync:
		var params AutoResyncParams
		if err := decodeParams(job.Params, &params); err != nil {
			return err
		}
		return p.runAutoResync(ctx, job, params)
	case KindRandomResync:
		var params RandomResyncParams
		if err := decodeParams(job.Params, &params); err != nil {
			return err
		}
		return p.runRandomResync(ctx, job, params)
	case KindDownload:
		var params DownloadParams
		if err := decodeParams(job.Params, &params); err != nil {
			return err
		}
		return p.runDownload(ctx, job, params)
	}
	return services.Wrap(services.ErrValidation, "pipeline", "run", "unknown job kind "+job.Kind, nil)
}

func (p *Pipeline) reporter(jobID string) *progressReporter {
	return &progressReporter{
		store:    p.store,
		notifier: p.notifier,
		jobID:    jobID,
		logger:   p.logger,
	}
}

// deliver moves a finished file into the output directory under a
// sanitized name and records it on the job.
func (p *Pipeline) deliver(ctx context.Context, jobID, srcPath, title, ext string) (string, error) {
	if err := os.MkdirAll(p.cfg.Paths.OutputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrProcessing, "pipeline", "deliver", "cannot create output directory", err)
	}

	name := textutil.SanitizeFileName(title)
	if name == "" {
		name = "remix"
	}
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	finalPath := filepath.Join(p.cfg.Paths.OutputDir, fmt.Sprintf("%s-%s%s", name, short, ext))

	if err := fileutil.MoveFile(srcPath, finalPath); err != nil {
		return "", services.Wrap(services.ErrProcessing, "pipeline", "deliver", "cannot move output into place", err)
	}

	record, err := p.store.GetByID(ctx, jobID)
	if err == nil && record != nil {
		record.OutputPath = finalPath
		if err := p.store.Update(ctx, record); err != nil {
			p.logger.Warn("output path persist failed", logging.Error(err))
		}
	}

	p.logger.Info("output delivered",
		logging.String(logging.FieldJobID, jobID),
		logging.String("path", finalPath))
	return finalPath, nil
}

func outputTitle(meta acquire.Metadata, fallback string) string {
	if title := strings.TrimSpace(meta.Title); title != "" {
		return title
	}
	return fallback
}
