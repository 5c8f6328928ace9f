package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"log/slog"

	"resyncd/internal/catalog"
	"resyncd/internal/config"
	"resyncd/internal/deps"
	"resyncd/internal/ipc"
	"resyncd/internal/jobstore"
	"resyncd/internal/logging"
	"resyncd/internal/notifications"
	"resyncd/internal/pipeline"
	"resyncd/internal/scheduler"
)

// SocketPath returns the daemon control socket location for a config.
func SocketPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join(os.TempDir(), "resyncd.sock")
	}
	return filepath.Join(cfg.Paths.LogDir, "resyncd.sock")
}

// Run starts the resyncd daemon loop: job store, scheduler, pipeline, and
// the IPC control socket. It blocks until the context is canceled or a
// termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := deps.Verify(cfg); err != nil {
		return err
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "resyncd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobstore.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	if reset, err := store.ResetStuckRunning(signalCtx); err != nil {
		logger.Warn("reset stuck jobs", logging.Error(err))
	} else if reset > 0 {
		logger.Info("reset interrupted jobs", logging.Int64("count", reset))
	}

	cat, err := catalog.Load(cfg.Paths.CatalogPath, logger)
	if err != nil {
		logger.Error("load track catalog", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	sched := scheduler.New(scheduler.Options{
		PriorityWorkers:  cfg.Queue.PriorityWorkers,
		StandardWorkers:  cfg.Queue.StandardWorkers,
		PriorityCapacity: cfg.Queue.PriorityCapacity,
		StandardCapacity: cfg.Queue.StandardCapacity,
	}, logger)
	pipe := pipeline.New(cfg, store, sched, cat, notifier, logger)

	if err := sched.Start(signalCtx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	runtime := NewRuntime(cfg, store, sched, pipe, cat, notifier, logger)

	socketPath := SocketPath(cfg)
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, runtime, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("resyncd daemon ready",
		logging.String("socket", socketPath),
		logging.String("database", store.Path()),
		logging.Int("catalog_tracks", cat.Len()))

	<-signalCtx.Done()
	logger.Info("resyncd daemon shutting down")
	return nil
}

// Runtime is the live daemon state exposed to IPC clients.
type Runtime struct {
	cfg      *config.Config
	store    *jobstore.Store
	sched    *scheduler.Scheduler
	pipeline *pipeline.Pipeline
	catalog  *catalog.Catalog
	notifier notifications.Service
	logger   *slog.Logger
}

// NewRuntime assembles a runtime from already-wired components.
func NewRuntime(cfg *config.Config, store *jobstore.Store, sched *scheduler.Scheduler, pipe *pipeline.Pipeline, cat *catalog.Catalog, notifier notifications.Service, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runtime{
		cfg:      cfg,
		store:    store,
		sched:    sched,
		pipeline: pipe,
		catalog:  cat,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit implements ipc.Daemon.
func (r *Runtime) Submit(ctx context.Context, kind, paramsJSON, userID string, priority bool) (*jobstore.Record, error) {
	return r.pipeline.SubmitRaw(ctx, kind, paramsJSON, userID, priority)
}

// ListJobs implements ipc.Daemon.
func (r *Runtime) ListJobs(ctx context.Context, statuses []jobstore.Status) ([]*jobstore.Record, error) {
	return r.store.List(ctx, statuses...)
}

// Job implements ipc.Daemon.
func (r *Runtime) Job(ctx context.Context, id string) (*jobstore.Record, error) {
	return r.store.GetByID(ctx, id)
}

// Snapshot implements ipc.Daemon.
func (r *Runtime) Snapshot() scheduler.Snapshot {
	return r.sched.Snapshot()
}

// Dependencies implements ipc.Daemon.
func (r *Runtime) Dependencies() []deps.Status {
	return deps.CheckBinaries(deps.Required(r.cfg))
}

// DatabasePath implements ipc.Daemon.
func (r *Runtime) DatabasePath() string {
	return r.store.Path()
}

// CatalogSize implements ipc.Daemon.
func (r *Runtime) CatalogSize() int {
	if r.catalog == nil {
		return 0
	}
	return r.catalog.Len()
}

// LogPath implements ipc.Daemon.
func (r *Runtime) LogPath() string {
	if r.cfg == nil || r.cfg.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(r.cfg.Paths.LogDir, "resyncd.log")
}

// TestNotification implements ipc.Daemon.
func (r *Runtime) TestNotification(ctx context.Context) error {
	return r.notifier.TestNotification(ctx)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
