package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"resyncd/internal/config"
)

// Store manages job history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	dbPath := cfg.Paths.DatabasePath
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const recordColumns = `id, kind, user_id, queue, priority, status, progress_stage,
    progress_percent, error_message, user_message, output_path, params_json,
    worker, created_at, updated_at, started_at, finished_at`

// Create inserts a new pending job record.
func (s *Store) Create(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(record.ID) == "" {
		return errors.New("record id is empty")
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = StatusPending
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (`+recordColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Kind,
		nullableString(record.UserID),
		nullableString(record.Queue),
		boolToInt(record.Priority),
		record.Status,
		nullableString(record.ProgressStage),
		record.ProgressPercent,
		nullableString(record.ErrorMessage),
		nullableString(record.UserMessage),
		nullableString(record.OutputPath),
		nullableString(record.ParamsJSON),
		nullableString(record.Worker),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		nullableTime(record.StartedAt),
		nullableTime(record.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job record by identifier, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM jobs WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return record, nil
}

// Update persists changes to an existing job record.
func (s *Store) Update(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET kind = ?, user_id = ?, queue = ?, priority = ?, status = ?,
             progress_stage = ?, progress_percent = ?, error_message = ?,
             user_message = ?, output_path = ?, params_json = ?, worker = ?,
             updated_at = ?, started_at = ?, finished_at = ?
         WHERE id = ?`,
		record.Kind,
		nullableString(record.UserID),
		nullableString(record.Queue),
		boolToInt(record.Priority),
		record.Status,
		nullableString(record.ProgressStage),
		record.ProgressPercent,
		nullableString(record.ErrorMessage),
		nullableString(record.UserMessage),
		nullableString(record.OutputPath),
		nullableString(record.ParamsJSON),
		nullableString(record.Worker),
		record.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(record.StartedAt),
		nullableTime(record.FinishedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// MarkRunning transitions a job to running and records its queue and worker.
func (s *Store) MarkRunning(ctx context.Context, id, queue, worker string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, queue = ?, worker = ?, started_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusRunning, queue, worker, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return nil
}

// SetProgress records a progress milestone for an in-flight job.
func (s *Store) SetProgress(ctx context.Context, id, stage string, percent float64) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET progress_stage = ?, progress_percent = ?, updated_at = ? WHERE id = ?`,
		stage, percent, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}

// MarkCompleted transitions a job to completed with its delivered output.
func (s *Store) MarkCompleted(ctx context.Context, id, outputPath string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, output_path = ?, progress_percent = 100,
             finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusCompleted, nullableString(outputPath), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed transitions a job to failed with internal and user-facing messages.
func (s *Store) MarkFailed(ctx context.Context, id, errorMessage, userMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, user_message = ?,
             finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed, nullableString(errorMessage), nullableString(userMessage), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// List returns job records filtered by status set (or all records when no
// status is provided), newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ResetStuckRunning resets jobs left in the running state (for example after
// a crash) back to failed so history never shows phantom active work.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = 'interrupted by restart',
             user_message = 'Processing was interrupted. Please resubmit.',
             finished_at = ?, updated_at = ?
         WHERE status = ?`,
		StatusFailed, now, now, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		record     Record
		userID     sql.NullString
		queue      sql.NullString
		priority   int
		stage      sql.NullString
		errMsg     sql.NullString
		userMsg    sql.NullString
		outputPath sql.NullString
		paramsJSON sql.NullString
		worker     sql.NullString
		createdAt  string
		updatedAt  string
		startedAt  sql.NullString
		finishedAt sql.NullString
	)

	err := scanner.Scan(
		&record.ID,
		&record.Kind,
		&userID,
		&queue,
		&priority,
		&record.Status,
		&stage,
		&record.ProgressPercent,
		&errMsg,
		&userMsg,
		&outputPath,
		&paramsJSON,
		&worker,
		&createdAt,
		&updatedAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	record.UserID = userID.String
	record.Queue = queue.String
	record.Priority = priority != 0
	record.ProgressStage = stage.String
	record.ErrorMessage = errMsg.String
	record.UserMessage = userMsg.String
	record.OutputPath = outputPath.String
	record.ParamsJSON = paramsJSON.String
	record.Worker = worker.String

	if record.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if record.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if startedAt.Valid {
		ts, err := parseTimestamp(startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		record.StartedAt = &ts
	}
	if finishedAt.Valid {
		ts, err := parseTimestamp(finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		record.FinishedAt = &ts
	}

	return &record, nil
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}
