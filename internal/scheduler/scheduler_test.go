package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"resyncd/internal/scheduler"
	"resyncd/internal/services"
)

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished map[string]error
	done     chan struct{}
	expect   int
}

func newRecordingObserver(expect int) *recordingObserver {
	return &recordingObserver{
		finished: make(map[string]error),
		done:     make(chan struct{}),
		expect:   expect,
	}
}

func (o *recordingObserver) JobStarted(job scheduler.Job, queue string, worker int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, job.ID)
}

func (o *recordingObserver) JobFinished(job scheduler.Job, queue string, worker int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished[job.ID] = err
	if len(o.finished) == o.expect {
		close(o.done)
	}
}

func (o *recordingObserver) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for jobs to finish")
	}
}

func TestSchedulerRunsJobs(t *testing.T) {
	sched := scheduler.New(scheduler.Options{
		PriorityWorkers: 1, StandardWorkers: 2,
		PriorityCapacity: 8, StandardCapacity: 8,
	}, nil)

	var mu sync.Mutex
	ran := map[string]bool{}
	sched.Register("resync", scheduler.RunnerFunc(func(ctx context.Context, job scheduler.Job) error {
		mu.Lock()
		defer mu.Unlock()
		ran[job.ID] = true
		return nil
	}))

	observer := newRecordingObserver(3)
	sched.SetObserver(observer)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := sched.Enqueue(scheduler.Job{ID: id, Kind: "resync"}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	observer.wait(t)

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 3 {
		t.Fatalf("expected 3 jobs run, got %d", len(ran))
	}
}

func TestEnqueueRejectsUnknownKind(t *testing.T) {
	sched := scheduler.New(scheduler.Options{}, nil)
	if _, err := sched.Enqueue(scheduler.Job{ID: "x", Kind: "mystery"}); !errors.Is(err, scheduler.ErrUnknownKind) {
		t.Fatalf("expected unknown-kind error, got %v", err)
	}
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	sched := scheduler.New(scheduler.Options{
		PriorityCapacity: 1, StandardCapacity: 1,
	}, nil)
	sched.Register("resync", scheduler.RunnerFunc(func(ctx context.Context, job scheduler.Job) error {
		return nil
	}))

	// Workers are not started, so the buffers fill immediately.
	if _, err := sched.Enqueue(scheduler.Job{ID: "1", Kind: "resync"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := sched.Enqueue(scheduler.Job{ID: "2", Kind: "resync"}); !errors.Is(err, scheduler.ErrQueueFull) {
		t.Fatalf("expected full-queue error, got %v", err)
	}
}

func TestPriorityRoutingFavorsShorterQueue(t *testing.T) {
	sched := scheduler.New(scheduler.Options{
		PriorityCapacity: 4, StandardCapacity: 4,
	}, nil)
	sched.Register("resync", scheduler.RunnerFunc(func(ctx context.Context, job scheduler.Job) error {
		return nil
	}))

	// Both empty: the tie goes to the priority queue.
	queue, err := sched.Enqueue(scheduler.Job{ID: "p1", Kind: "resync", Priority: true})
	if err != nil || queue != scheduler.QueuePriority {
		t.Fatalf("expected priority queue on tie, got %q (%v)", queue, err)
	}

	// Standard jobs never jump queues.
	queue, err = sched.Enqueue(scheduler.Job{ID: "s1", Kind: "resync"})
	if err != nil || queue != scheduler.QueueStandard {
		t.Fatalf("expected standard queue, got %q (%v)", queue, err)
	}

	// Priority queue now longer than standard: spill to standard.
	if _, err := sched.Enqueue(scheduler.Job{ID: "p2", Kind: "resync", Priority: true}); err != nil {
		t.Fatalf("enqueue p2: %v", err)
	}
	queue, err = sched.Enqueue(scheduler.Job{ID: "p3", Kind: "resync", Priority: true})
	if err != nil || queue != scheduler.QueueStandard {
		t.Fatalf("expected spill to standard, got %q (%v)", queue, err)
	}
}

func TestWorkerSurvivesPanic(t *testing.T) {
	sched := scheduler.New(scheduler.Options{
		PriorityWorkers: 1, StandardWorkers: 1,
		PriorityCapacity: 4, StandardCapacity: 4,
	}, nil)
	sched.Register("explode", scheduler.RunnerFunc(func(ctx context.Context, job scheduler.Job) error {
		panic("boom")
	}))
	sched.Register("resync", scheduler.RunnerFunc(func(ctx context.Context, job scheduler.Job) error {
		return nil
	}))

	observer := newRecordingObserver(2)
	sched.SetObserver(observer)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop()

	if _, err := sched.Enqueue(scheduler.Job{ID: "bad", Kind: "explode"}); err != nil {
		t.Fatalf("enqueue bad: %v", err)
	}
	if _, err := sched.Enqueue(scheduler.Job{ID: "good", Kind: "resync"}); err != nil {
		t.Fatalf("enqueue good: %v", err)
	}
	observer.wait(t)

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if !errors.Is(observer.finished["bad"], services.ErrProcessing) {
		t.Fatalf("expected panic converted to processing error, got %v", observer.finished["bad"])
	}
	if observer.finished["good"] != nil {
		t.Fatalf("expected good job to succeed, got %v", observer.finished["good"])
	}
}

func TestSnapshotCountsQueuedJobs(t *testing.T) {
	sched := scheduler.New(scheduler.Options{
		PriorityWorkers: 2, StandardWorkers: 3,
		PriorityCapacity: 4, StandardCapacity: 4,
	}, nil)
	sched.Register("resync", scheduler.RunnerFunc(func(ctx context.Context, job scheduler.Job) error {
		return nil
	}))

	if _, err := sched.Enqueue(scheduler.Job{ID: "s1", Kind: "resync"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	snap := sched.Snapshot()
	if snap.StandardQueued != 1 || snap.PriorityQueued != 0 {
		t.Fatalf("unexpected queue depths: %+v", snap)
	}

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap = sched.Snapshot()
		if len(snap.Workers) == 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 5 workers in snapshot, got %d", len(snap.Workers))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSnapshotCarriesActiveJobDetails(t *testing.T) {
	sched := scheduler.New(scheduler.Options{
		PriorityWorkers: 1, StandardWorkers: 1,
		PriorityCapacity: 4, StandardCapacity: 4,
	}, nil)
	release := make(chan struct{})
	sched.Register("resync", scheduler.RunnerFunc(func(ctx context.Context, job scheduler.Job) error {
		<-release
		return nil
	}))

	observer := newRecordingObserver(1)
	sched.SetObserver(observer)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop()

	if _, err := sched.Enqueue(scheduler.Job{ID: "j1", Kind: "resync", UserID: "user-9", Priority: true}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var active scheduler.WorkerStatus
	deadline := time.Now().Add(2 * time.Second)
	for {
		found := false
		for _, worker := range sched.Snapshot().Workers {
			if worker.Busy {
				active = worker
				found = true
			}
		}
		if found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for a busy worker")
		}
		time.Sleep(10 * time.Millisecond)
	}
	close(release)
	observer.wait(t)

	if active.JobID != "j1" || active.JobKind != "resync" {
		t.Fatalf("unexpected active job: %+v", active)
	}
	if active.JobUserID != "user-9" || !active.JobPriority {
		t.Fatalf("expected owner and tier on the busy worker: %+v", active)
	}
	if active.EnqueuedAt.IsZero() || active.StartedAt.IsZero() {
		t.Fatalf("expected enqueue and start timestamps: %+v", active)
	}
	if active.StartedAt.Before(active.EnqueuedAt) {
		t.Fatalf("start %v precedes enqueue %v", active.StartedAt, active.EnqueuedAt)
	}

	for _, worker := range sched.Snapshot().Workers {
		if worker.Busy {
			continue
		}
		if worker.JobUserID != "" || worker.JobPriority {
			t.Fatalf("idle worker should not carry job details: %+v", worker)
		}
	}
}
