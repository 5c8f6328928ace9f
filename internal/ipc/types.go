package ipc

// SubmitRequest queues a new job. Params carries the kind-specific
// parameters as a JSON document.
type SubmitRequest struct {
	Kind     string `json:"kind"`
	Params   string `json:"params"`
	UserID   string `json:"user_id,omitempty"`
	Priority bool   `json:"priority,omitempty"`
}

// SubmitResponse returns the persisted view of the queued job.
type SubmitResponse struct {
	Job JobView `json:"job"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// WorkerView is a point-in-time view of one scheduler worker.
type WorkerView struct {
	Queue       string `json:"queue"`
	Index       int    `json:"index"`
	Busy        bool   `json:"busy"`
	JobID       string `json:"job_id,omitempty"`
	JobKind     string `json:"job_kind,omitempty"`
	JobUserID   string `json:"job_user_id,omitempty"`
	JobPriority bool   `json:"job_priority,omitempty"`
	EnqueuedAt  string `json:"enqueued_at,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	Processed   uint64 `json:"processed"`
}

// DependencyView describes availability of an external binary.
type DependencyView struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// StatusResponse represents combined daemon and scheduler status.
type StatusResponse struct {
	Running        bool             `json:"running"`
	PID            int              `json:"pid"`
	DatabasePath   string           `json:"database_path"`
	PriorityQueued int              `json:"priority_queued"`
	StandardQueued int              `json:"standard_queued"`
	CatalogTracks  int              `json:"catalog_tracks"`
	Workers        []WorkerView     `json:"workers"`
	Dependencies   []DependencyView `json:"dependencies"`
}

// JobListRequest filters job listing by status.
type JobListRequest struct {
	Statuses []string `json:"statuses"`
}

// JobListResponse contains job records, newest first.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobDescribeRequest fetches a single job by identifier.
type JobDescribeRequest struct {
	ID string `json:"id"`
}

// JobDescribeResponse contains a single job record.
type JobDescribeResponse struct {
	Job JobView `json:"job"`
}

// JobView is the wire representation of a job record.
type JobView struct {
	ID              string  `json:"id"`
	Kind            string  `json:"kind"`
	UserID          string  `json:"user_id,omitempty"`
	Queue           string  `json:"queue,omitempty"`
	Priority        bool    `json:"priority"`
	Status          string  `json:"status"`
	ProgressStage   string  `json:"progress_stage,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	UserMessage     string  `json:"user_message,omitempty"`
	OutputPath      string  `json:"output_path,omitempty"`
	Worker          string  `json:"worker,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	StartedAt       string  `json:"started_at,omitempty"`
	FinishedAt      string  `json:"finished_at,omitempty"`
}

// LogTailRequest reads daemon log lines from an offset. A negative
// offset asks for the last Limit lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit,omitempty"`
	Follow     bool  `json:"follow,omitempty"`
	WaitMillis int64 `json:"wait_millis,omitempty"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines,omitempty"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest asks the daemon to send a test push.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the outcome of a test push.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}
