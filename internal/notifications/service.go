package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"resyncd/internal/config"
	"resyncd/internal/services"
)

const userAgent = "resyncd/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyJobQueued(ctx context.Context, jobID, kind, queue string) error
	NotifyJobStarted(ctx context.Context, jobID, kind string) error
	NotifyJobProgress(ctx context.Context, jobID, stage string, percent int) error
	NotifyJobCompleted(ctx context.Context, jobID, outputPath string, duration time.Duration) error
	NotifyJobFailed(ctx context.Context, jobID string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
// Progress events are throttled to the configured minimum interval;
// terminal events always go out.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	minInterval := time.Duration(cfg.Notifications.MinIntervalSeconds) * time.Second

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		sendProgress:   cfg.Notifications.Progress,
		sendErrors:     cfg.Notifications.Errors,
		minInterval:    minInterval,
		lastProgressAt: make(map[string]time.Time),
		now:            time.Now,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	sendProgress bool
	sendErrors   bool
	minInterval  time.Duration

	mu             sync.Mutex
	lastProgressAt map[string]time.Time
	now            func() time.Time
}

func (n *ntfyService) NotifyJobQueued(ctx context.Context, jobID, kind, queue string) error {
	data := payload{
		title:   "Resync - Job Queued",
		message: fmt.Sprintf("Queued %s job %s on the %s queue", kind, jobID, queue),
		tags:    []string{"resyncd", "job", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobStarted(ctx context.Context, jobID, kind string) error {
	data := payload{
		title:   "Resync - Job Started",
		message: fmt.Sprintf("Started %s job %s", kind, jobID),
		tags:    []string{"resyncd", "job", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobProgress(ctx context.Context, jobID, stage string, percent int) error {
	if !n.sendProgress {
		return nil
	}
	if !n.progressDue(jobID) {
		return nil
	}
	data := payload{
		title:    "Resync - Progress",
		message:  fmt.Sprintf("%s: %s (%d%%)", jobID, stage, percent),
		tags:     []string{"resyncd", "job", "progress"},
		priority: "low",
	}
	return n.send(ctx, data)
}

// progressDue rate-limits per-job progress messages.
func (n *ntfyService) progressDue(jobID string) bool {
	if n.minInterval <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if last, ok := n.lastProgressAt[jobID]; ok && now.Sub(last) < n.minInterval {
		return false
	}
	n.lastProgressAt[jobID] = now
	return true
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobID, outputPath string, duration time.Duration) error {
	n.forget(jobID)
	duration = duration.Round(time.Second)
	message := fmt.Sprintf("Job %s complete in %s", jobID, duration)
	if outputPath = strings.TrimSpace(outputPath); outputPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputPath)
	}
	data := payload{
		title:    "Resync - Complete",
		message:  message,
		tags:     []string{"resyncd", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID string, err error) error {
	n.forget(jobID)
	if !n.sendErrors {
		return nil
	}
	data := payload{
		title:    "Resync - Failed",
		message:  fmt.Sprintf("Job %s failed: %s", jobID, services.UserMessage(err)),
		tags:     []string{"resyncd", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Resync - Test",
		message:  "Notification system test",
		tags:     []string{"resyncd", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) forget(jobID string) {
	n.mu.Lock()
	delete(n.lastProgressAt, jobID)
	n.mu.Unlock()
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobQueued(context.Context, string, string, string) error { return nil }
func (noopService) NotifyJobStarted(context.Context, string, string) error        { return nil }
func (noopService) NotifyJobProgress(context.Context, string, string, int) error  { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string, time.Duration) error {
	return nil
}
func (noopService) NotifyJobFailed(context.Context, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
