package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"resyncd/internal/testsupport"
)

type captured struct {
	title    string
	priority string
	body     string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		mu.Lock()
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			body:     string(buf[:n]),
		})
		mu.Unlock()
	}))
	t.Cleanup(server.Close)
	return server, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

func newTestService(t *testing.T, topic string) *ntfyService {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.Progress = true
	cfg.Notifications.Errors = true
	cfg.Notifications.MinIntervalSeconds = 5

	svc, ok := NewService(cfg).(*ntfyService)
	if !ok {
		t.Fatal("expected ntfy-backed service")
	}
	return svc
}

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	if _, ok := NewService(cfg).(noopService); !ok {
		t.Fatal("expected noop service without a topic")
	}
}

func TestNotifyJobCompletedPayload(t *testing.T) {
	server, messages := newCaptureServer(t)
	svc := newTestService(t, server.URL)

	if err := svc.NotifyJobCompleted(context.Background(), "job-1", "/out/final.mp4", 84*time.Second); err != nil {
		t.Fatalf("notify: %v", err)
	}

	got := messages()
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].title != "Resync - Complete" || got[0].priority != "high" {
		t.Fatalf("unexpected headers: %+v", got[0])
	}
	if got[0].body == "" {
		t.Fatal("expected a message body")
	}
}

func TestProgressThrottling(t *testing.T) {
	server, messages := newCaptureServer(t)
	svc := newTestService(t, server.URL)

	clock := time.Unix(1000, 0)
	svc.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := svc.NotifyJobProgress(ctx, "job-1", "downloading", 30+i); err != nil {
			t.Fatalf("progress: %v", err)
		}
	}
	if got := messages(); len(got) != 1 {
		t.Fatalf("expected 1 throttled progress message, got %d", len(got))
	}

	clock = clock.Add(6 * time.Second)
	if err := svc.NotifyJobProgress(ctx, "job-1", "aligning", 60); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got := messages(); len(got) != 2 {
		t.Fatalf("expected second message after interval, got %d", len(got))
	}

	// Terminal events are never throttled.
	if err := svc.NotifyJobFailed(ctx, "job-1", context.DeadlineExceeded); err != nil {
		t.Fatalf("failed notify: %v", err)
	}
	if got := messages(); len(got) != 3 {
		t.Fatalf("expected failure message, got %d", len(got))
	}
}

func TestProgressDisabled(t *testing.T) {
	server, messages := newCaptureServer(t)
	svc := newTestService(t, server.URL)
	svc.sendProgress = false

	if err := svc.NotifyJobProgress(context.Background(), "job-1", "downloading", 30); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got := messages(); len(got) != 0 {
		t.Fatalf("expected no messages, got %d", len(got))
	}
}
