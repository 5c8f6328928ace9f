package jobstore

import (
	"strings"
	"time"
)

// Status describes the lifecycle state of a job record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TerminalStatuses lists the states a job can never leave.
func TerminalStatuses() []Status {
	return []Status{StatusCompleted, StatusFailed}
}

// ParseStatus maps a user-supplied string onto a known status.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, true
	case StatusRunning:
		return StatusRunning, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	}
	return "", false
}

// Record is the persisted history of one submitted job.
type Record struct {
	ID              string
	Kind            string
	UserID          string
	Queue           string
	Priority        bool
	Status          Status
	ProgressStage   string
	ProgressPercent float64
	ErrorMessage    string
	UserMessage     string
	OutputPath      string
	ParamsJSON      string
	Worker          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// SetProgress records a progress milestone on the in-memory record.
func (r *Record) SetProgress(stage string, percent float64) {
	r.ProgressStage = strings.TrimSpace(stage)
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	r.ProgressPercent = percent
}

// Terminal reports whether the record has reached a final state.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// RunDuration returns how long the job ran, or zero when timing is incomplete.
func (r *Record) RunDuration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}
