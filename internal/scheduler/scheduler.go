package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"log/slog"

	"resyncd/internal/logging"
	"resyncd/internal/services"
)

// Queue names used in logs and telemetry.
const (
	QueuePriority = "priority"
	QueueStandard = "standard"
)

// ErrQueueFull is returned by Enqueue when the target queue has no room.
var ErrQueueFull = errors.New("scheduler: queue full")

// ErrUnknownKind is returned when no runner is registered for a job's kind.
var ErrUnknownKind = errors.New("scheduler: unknown job kind")

// Job is a value descriptor for one unit of work. The scheduler never
// mutates it and holds no references after the runner returns.
type Job struct {
	ID       string
	Kind     string
	UserID   string
	Priority bool
	// Params carries the operation parameters as JSON.
	Params string
	// EnqueuedAt is stamped by Enqueue when left zero.
	EnqueuedAt time.Time
}

// Runner executes jobs of one kind.
type Runner interface {
	Run(ctx context.Context, job Job) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, job Job) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Observer receives lifecycle callbacks for dispatched jobs. All methods
// are called from worker goroutines.
type Observer interface {
	JobStarted(job Job, queue string, worker int)
	JobFinished(job Job, queue string, worker int, err error)
}

// Options sizes the worker pools and queue buffers.
type Options struct {
	PriorityWorkers  int
	StandardWorkers  int
	PriorityCapacity int
	StandardCapacity int
}

func (o Options) normalized() Options {
	if o.PriorityWorkers < 1 {
		o.PriorityWorkers = 1
	}
	if o.StandardWorkers < 1 {
		o.StandardWorkers = 1
	}
	if o.PriorityCapacity < 1 {
		o.PriorityCapacity = 1
	}
	if o.StandardCapacity < 1 {
		o.StandardCapacity = 1
	}
	return o
}

// WorkerStatus is a point-in-time view of one worker for telemetry.
type WorkerStatus struct {
	Queue       string
	Index       int
	Busy        bool
	JobID       string
	JobKind     string
	JobUserID   string
	JobPriority bool
	EnqueuedAt  time.Time
	StartedAt   time.Time
	Processed   uint64
}

// Snapshot is a point-in-time view of the whole scheduler.
type Snapshot struct {
	PriorityQueued int
	StandardQueued int
	Workers        []WorkerStatus
}

// Scheduler dispatches jobs to fixed worker pools over two bounded
// queues. Priority-flagged jobs go to whichever queue is shorter, with
// ties favouring the priority queue; everything else waits in standard.
type Scheduler struct {
	opts     Options
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	runners map[string]Runner
	workers []*workerState
	started bool
	stopped bool

	priority chan Job
	standard chan Job
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type workerState struct {
	mu          sync.Mutex
	queue       string
	index       int
	busy        bool
	jobID       string
	jobKind     string
	jobUserID   string
	jobPriority bool
	enqueuedAt  time.Time
	startedAt   time.Time
	processed   uint64
}

// New constructs a stopped scheduler. Register runners and call Start.
func New(opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts = opts.normalized()
	return &Scheduler{
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		runners:  make(map[string]Runner),
		priority: make(chan Job, opts.PriorityCapacity),
		standard: make(chan Job, opts.StandardCapacity),
	}
}

// SetObserver installs lifecycle callbacks. Must be called before Start.
func (s *Scheduler) SetObserver(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

// Register installs the runner for a job kind, replacing any previous one.
func (s *Scheduler) Register(kind string, runner Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runners[kind] = runner
}

// Start launches the worker pools. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler: already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	spawn := func(queue string, jobs <-chan Job, count int) {
		for i := 0; i < count; i++ {
			state := &workerState{queue: queue, index: i}
			s.workers = append(s.workers, state)
			s.wg.Add(1)
			go s.work(ctx, jobs, state)
		}
	}
	spawn(QueuePriority, s.priority, s.opts.PriorityWorkers)
	spawn(QueueStandard, s.standard, s.opts.StandardWorkers)

	s.logger.Info("scheduler started",
		logging.Int("priority_workers", s.opts.PriorityWorkers),
		logging.Int("standard_workers", s.opts.StandardWorkers))
	return nil
}

// Stop drains nothing: queued jobs that have not started are dropped, and
// running jobs see their context cancelled. Blocks until workers exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Enqueue routes a job to a queue without blocking. Returns ErrQueueFull
// when the chosen queue has no space and ErrUnknownKind when no runner is
// registered for the job.
func (s *Scheduler) Enqueue(job Job) (string, error) {
	s.mu.Lock()
	_, known := s.runners[job.Kind]
	s.mu.Unlock()
	if !known {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind)
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	queue := QueueStandard
	target := s.standard
	if job.Priority && len(s.priority) <= len(s.standard) {
		queue = QueuePriority
		target = s.priority
	}

	select {
	case target <- job:
		s.logger.Debug("job queued",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("kind", job.Kind),
			logging.String(logging.FieldQueue, queue))
		return queue, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrQueueFull, queue)
	}
}

// Snapshot reports queue depths and per-worker occupancy.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	workers := make([]*workerState, len(s.workers))
	copy(workers, s.workers)
	s.mu.Unlock()

	snap := Snapshot{
		PriorityQueued: len(s.priority),
		StandardQueued: len(s.standard),
	}
	for _, state := range workers {
		state.mu.Lock()
		snap.Workers = append(snap.Workers, WorkerStatus{
			Queue:       state.queue,
			Index:       state.index,
			Busy:        state.busy,
			JobID:       state.jobID,
			JobKind:     state.jobKind,
			JobUserID:   state.jobUserID,
			JobPriority: state.jobPriority,
			EnqueuedAt:  state.enqueuedAt,
			StartedAt:   state.startedAt,
			Processed:   state.processed,
		})
		state.mu.Unlock()
	}
	return snap
}

func (s *Scheduler) work(ctx context.Context, jobs <-chan Job, state *workerState) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			s.execute(ctx, job, state)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job, state *workerState) {
	s.mu.Lock()
	runner := s.runners[job.Kind]
	observer := s.observer
	s.mu.Unlock()

	state.mu.Lock()
	state.busy = true
	state.jobID = job.ID
	state.jobKind = job.Kind
	state.jobUserID = job.UserID
	state.jobPriority = job.Priority
	state.enqueuedAt = job.EnqueuedAt
	state.startedAt = time.Now()
	state.mu.Unlock()

	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithQueue(jobCtx, state.queue)
	jobCtx = services.WithWorker(jobCtx, fmt.Sprintf("%s-%d", state.queue, state.index))
	if job.UserID != "" {
		jobCtx = services.WithUserID(jobCtx, job.UserID)
	}

	if observer != nil {
		observer.JobStarted(job, state.queue, state.index)
	}

	err := s.runSafely(jobCtx, runner, job)
	if err != nil {
		s.logger.Error("job failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("kind", job.Kind),
			logging.Error(err))
	} else {
		s.logger.Info("job complete",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("kind", job.Kind))
	}

	if observer != nil {
		observer.JobFinished(job, state.queue, state.index, err)
	}

	state.mu.Lock()
	state.busy = false
	state.jobID = ""
	state.jobKind = ""
	state.jobUserID = ""
	state.jobPriority = false
	state.enqueuedAt = time.Time{}
	state.processed++
	state.mu.Unlock()
}

// runSafely converts a runner panic into an error so one bad job cannot
// take a worker down with it.
func (s *Scheduler) runSafely(ctx context.Context, runner Runner, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrProcessing, "scheduler", "run",
				fmt.Sprintf("job panicked: %v", r), nil)
			s.logger.Error("runner panic",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("stack", string(debug.Stack())))
		}
	}()
	if runner == nil {
		return fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind)
	}
	return runner.Run(ctx, job)
}
