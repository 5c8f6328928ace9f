package ipc_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"resyncd/internal/deps"
	"resyncd/internal/ipc"
	"resyncd/internal/jobstore"
	"resyncd/internal/logging"
	"resyncd/internal/scheduler"
)

type fakeDaemon struct {
	jobs       map[string]*jobstore.Record
	submitted  []string
	notifyErr  error
	notified   int
	listFilter []jobstore.Status
	logPath    string
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{jobs: make(map[string]*jobstore.Record)}
}

func (f *fakeDaemon) Submit(_ context.Context, kind, paramsJSON, userID string, priority bool) (*jobstore.Record, error) {
	if strings.TrimSpace(kind) == "" {
		return nil, errors.New("kind is required")
	}
	record := &jobstore.Record{
		ID:         "job-" + kind,
		Kind:       kind,
		UserID:     userID,
		Priority:   priority,
		Queue:      "standard",
		Status:     jobstore.StatusPending,
		ParamsJSON: paramsJSON,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.jobs[record.ID] = record
	f.submitted = append(f.submitted, kind)
	return record, nil
}

func (f *fakeDaemon) ListJobs(_ context.Context, statuses []jobstore.Status) ([]*jobstore.Record, error) {
	f.listFilter = statuses
	records := make([]*jobstore.Record, 0, len(f.jobs))
	for _, record := range f.jobs {
		records = append(records, record)
	}
	return records, nil
}

func (f *fakeDaemon) Job(_ context.Context, id string) (*jobstore.Record, error) {
	return f.jobs[id], nil
}

func (f *fakeDaemon) Snapshot() scheduler.Snapshot {
	return scheduler.Snapshot{
		PriorityQueued: 1,
		StandardQueued: 2,
		Workers: []scheduler.WorkerStatus{
			{
				Queue: "priority", Index: 0, Busy: true,
				JobID: "job-download", JobKind: "download",
				JobUserID: "user-7", JobPriority: true,
				EnqueuedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				StartedAt:  time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC),
			},
			{Queue: "standard", Index: 0},
		},
	}
}

func (f *fakeDaemon) Dependencies() []deps.Status {
	return []deps.Status{{Name: "FFmpeg", Command: "ffmpeg", Available: true}}
}

func (f *fakeDaemon) DatabasePath() string { return "/tmp/jobs.db" }

func (f *fakeDaemon) CatalogSize() int { return 3 }

func (f *fakeDaemon) LogPath() string { return f.logPath }

func (f *fakeDaemon) TestNotification(context.Context) error {
	f.notified++
	return f.notifyErr
}

func startServer(t *testing.T, daemon ipc.Daemon) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "resyncd.sock")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, socket, daemon, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)
	return socket
}

func TestIPCServerClient(t *testing.T) {
	daemon := newFakeDaemon()
	daemon.logPath = filepath.Join(t.TempDir(), "resyncd.log")
	if err := os.WriteFile(daemon.logPath, []byte("line one\nline two\nline three\n"), 0o644); err != nil {
		t.Fatalf("write log fixture: %v", err)
	}
	socket := startServer(t, daemon)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	submitResp, err := client.Submit(ipc.SubmitRequest{
		Kind:     "download",
		Params:   `{"url":"https://example.com/clip.mp4"}`,
		Priority: true,
	})
	if err != nil {
		t.Fatalf("Submit RPC failed: %v", err)
	}
	if submitResp.Job.ID != "job-download" {
		t.Fatalf("unexpected job id %q", submitResp.Job.ID)
	}
	if submitResp.Job.Status != string(jobstore.StatusPending) {
		t.Fatalf("unexpected status %q", submitResp.Job.Status)
	}
	if submitResp.Job.CreatedAt == "" {
		t.Fatal("expected created timestamp on wire view")
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.PriorityQueued != 1 || status.StandardQueued != 2 {
		t.Fatalf("unexpected queue depths %d/%d", status.PriorityQueued, status.StandardQueued)
	}
	if len(status.Workers) != 2 || !status.Workers[0].Busy {
		t.Fatalf("unexpected workers %+v", status.Workers)
	}
	busy := status.Workers[0]
	if busy.JobUserID != "user-7" || !busy.JobPriority {
		t.Fatalf("expected owner and tier on the busy worker: %+v", busy)
	}
	if busy.EnqueuedAt != "2026-03-01T12:00:00Z" || busy.StartedAt != "2026-03-01T12:00:05Z" {
		t.Fatalf("expected wire timestamps on the busy worker: %+v", busy)
	}
	if idle := status.Workers[1]; idle.StartedAt != "" || idle.EnqueuedAt != "" {
		t.Fatalf("idle worker should omit timestamps: %+v", idle)
	}
	if len(status.Dependencies) != 1 || status.Dependencies[0].Name != "FFmpeg" {
		t.Fatalf("unexpected dependencies %+v", status.Dependencies)
	}

	jobs, err := client.Jobs([]string{"pending", "bogus"})
	if err != nil {
		t.Fatalf("Jobs RPC failed: %v", err)
	}
	if len(jobs.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs.Jobs))
	}
	if len(daemon.listFilter) != 1 || daemon.listFilter[0] != jobstore.StatusPending {
		t.Fatalf("unknown statuses should be dropped, got %v", daemon.listFilter)
	}

	describe, err := client.Describe("job-download")
	if err != nil {
		t.Fatalf("Describe RPC failed: %v", err)
	}
	if describe.Job.Kind != "download" {
		t.Fatalf("unexpected kind %q", describe.Job.Kind)
	}
	if _, err := client.Describe("missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}

	tail, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail RPC failed: %v", err)
	}
	if len(tail.Lines) != 2 || tail.Lines[1] != "line three" {
		t.Fatalf("unexpected tail lines %v", tail.Lines)
	}

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if !notify.Sent {
		t.Fatalf("expected sent notification, message=%s", notify.Message)
	}
	if daemon.notified != 1 {
		t.Fatalf("expected one notification, got %d", daemon.notified)
	}
}

func TestIPCTestNotificationFailure(t *testing.T) {
	daemon := newFakeDaemon()
	daemon.notifyErr = errors.New("topic unreachable")
	socket := startServer(t, daemon)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if notify.Sent {
		t.Fatal("expected unsent notification")
	}
	if !strings.Contains(notify.Message, "topic unreachable") {
		t.Fatalf("unexpected message %q", notify.Message)
	}
}
