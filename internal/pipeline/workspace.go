package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"log/slog"

	"github.com/gofrs/flock"

	"resyncd/internal/logging"
	"resyncd/internal/services"
)

// workspace is a job-scoped scratch directory. Every intermediate file a
// job produces lives under it, so cleanup is one directory removal no
// matter how far the job got.
type workspace struct {
	root   string
	lock   *flock.Flock
	logger *slog.Logger
}

// newWorkspace creates and locks the scratch directory for a job. The
// lock guards against a second daemon instance reusing the same job ID
// after a crash-and-restart race.
func newWorkspace(baseDir, jobID string, logger *slog.Logger) (*workspace, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	root := filepath.Join(baseDir, jobID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrProcessing, "pipeline", "workspace", "cannot create workspace", err)
	}

	lock := flock.New(filepath.Join(root, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrProcessing, "pipeline", "workspace", "cannot lock workspace", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrProcessing, "pipeline", "workspace",
			fmt.Sprintf("workspace for job %s is already in use", jobID), nil)
	}

	return &workspace{
		root:   root,
		lock:   lock,
		logger: logging.NewComponentLogger(logger, "workspace"),
	}, nil
}

// path returns the absolute path for a file inside the workspace.
func (w *workspace) path(name string) string {
	return filepath.Join(w.root, name)
}

// cleanup releases the lock and removes the whole scratch directory.
// Always safe to defer; failures are logged, not returned, because by the
// time cleanup runs the job outcome is already decided.
func (w *workspace) cleanup() {
	if w == nil {
		return
	}
	if w.lock != nil {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("workspace unlock failed", logging.Error(err))
		}
	}
	if err := os.RemoveAll(w.root); err != nil {
		w.logger.Warn("workspace removal failed",
			logging.String("path", w.root), logging.Error(err))
	}
}
