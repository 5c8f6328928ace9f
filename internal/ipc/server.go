package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"resyncd/internal/deps"
	"resyncd/internal/jobstore"
	"resyncd/internal/logging"
	"resyncd/internal/logs"
	"resyncd/internal/scheduler"
)

// Daemon is the control surface the server exposes over the socket. The
// serve runtime implements it.
type Daemon interface {
	Submit(ctx context.Context, kind, paramsJSON, userID string, priority bool) (*jobstore.Record, error)
	ListJobs(ctx context.Context, statuses []jobstore.Status) ([]*jobstore.Record, error)
	Job(ctx context.Context, id string) (*jobstore.Record, error)
	Snapshot() scheduler.Snapshot
	Dependencies() []deps.Status
	DatabasePath() string
	CatalogSize() int
	LogPath() string
	TestNotification(ctx context.Context) error
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Resyncd", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

// FromRecord converts a stored job record into its wire view.
func FromRecord(record *jobstore.Record) JobView {
	if record == nil {
		return JobView{}
	}
	view := JobView{
		ID:              record.ID,
		Kind:            record.Kind,
		UserID:          record.UserID,
		Queue:           record.Queue,
		Priority:        record.Priority,
		Status:          string(record.Status),
		ProgressStage:   record.ProgressStage,
		ProgressPercent: record.ProgressPercent,
		ErrorMessage:    record.ErrorMessage,
		UserMessage:     record.UserMessage,
		OutputPath:      record.OutputPath,
		Worker:          record.Worker,
	}
	if !record.CreatedAt.IsZero() {
		view.CreatedAt = record.CreatedAt.UTC().Format(time.RFC3339)
	}
	if record.StartedAt != nil {
		view.StartedAt = record.StartedAt.UTC().Format(time.RFC3339)
	}
	if record.FinishedAt != nil {
		view.FinishedAt = record.FinishedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	kind := strings.TrimSpace(req.Kind)
	s.log().Debug("job submit requested", logging.String("kind", kind))
	record, err := s.daemon.Submit(s.ctx, kind, req.Params, req.UserID, req.Priority)
	if err != nil {
		return err
	}
	resp.Job = FromRecord(record)
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	snapshot := s.daemon.Snapshot()
	resp.Running = true
	resp.PID = os.Getpid()
	resp.DatabasePath = s.daemon.DatabasePath()
	resp.PriorityQueued = snapshot.PriorityQueued
	resp.StandardQueued = snapshot.StandardQueued
	resp.CatalogTracks = s.daemon.CatalogSize()
	resp.Workers = make([]WorkerView, 0, len(snapshot.Workers))
	for _, worker := range snapshot.Workers {
		view := WorkerView{
			Queue:       worker.Queue,
			Index:       worker.Index,
			Busy:        worker.Busy,
			JobID:       worker.JobID,
			JobKind:     worker.JobKind,
			JobUserID:   worker.JobUserID,
			JobPriority: worker.JobPriority,
			Processed:   worker.Processed,
		}
		if worker.Busy {
			if !worker.EnqueuedAt.IsZero() {
				view.EnqueuedAt = worker.EnqueuedAt.UTC().Format(time.RFC3339)
			}
			if !worker.StartedAt.IsZero() {
				view.StartedAt = worker.StartedAt.UTC().Format(time.RFC3339)
			}
		}
		resp.Workers = append(resp.Workers, view)
	}
	for _, dep := range s.daemon.Dependencies() {
		resp.Dependencies = append(resp.Dependencies, DependencyView{
			Name:      dep.Name,
			Command:   dep.Command,
			Optional:  dep.Optional,
			Available: dep.Available,
			Detail:    dep.Detail,
		})
	}
	return nil
}

func (s *service) Jobs(req JobListRequest, resp *JobListResponse) error {
	statuses := make([]jobstore.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := jobstore.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	records, err := s.daemon.ListJobs(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Jobs = make([]JobView, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		resp.Jobs = append(resp.Jobs, FromRecord(record))
	}
	return nil
}

func (s *service) Describe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("job id is required")
	}
	record, err := s.daemon.Job(s.ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("job %s not found", id)
	}
	resp.Job = FromRecord(record)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	return nil
}
