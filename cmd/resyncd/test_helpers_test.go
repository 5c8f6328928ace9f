package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"resyncd/internal/catalog"
	"resyncd/internal/config"
	"resyncd/internal/daemonrun"
	"resyncd/internal/ipc"
	"resyncd/internal/jobstore"
	"resyncd/internal/logging"
	"resyncd/internal/notifications"
	"resyncd/internal/pipeline"
	"resyncd/internal/scheduler"
	"resyncd/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *jobstore.Store
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	cat, err := catalog.Load("", logger)
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	sched := scheduler.New(scheduler.Options{
		PriorityWorkers:  1,
		StandardWorkers:  1,
		PriorityCapacity: 8,
		StandardCapacity: 8,
	}, logger)
	notifier := notifications.NewService(cfg)
	pipe := pipeline.New(cfg, store, sched, cat, notifier, logger)
	runtime := daemonrun.NewRuntime(cfg, store, sched, pipe, cat, notifier, logger)

	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	socket := daemonrun.SocketPath(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server, err := ipc.NewServer(ctx, socket, runtime, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)
	time.Sleep(50 * time.Millisecond)

	configPath := writeConfigFile(t, cfg)
	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		socketPath: socket,
		configPath: configPath,
	}
}

func writeConfigFile(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, socketPath, configPath string) (string, string, error) {
	t.Helper()

	full := make([]string, 0, len(args)+4)
	full = append(full, args...)
	if socketPath != "" {
		full = append(full, "--socket", socketPath)
	}
	if configPath != "" {
		full = append(full, "--config", configPath)
	}

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(full)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}
