package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resyncd/internal/catalog"
	"resyncd/internal/config"
	"resyncd/internal/jobstore"
	"resyncd/internal/scheduler"
	"resyncd/internal/services"
	"resyncd/internal/testsupport"
)

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *jobstore.Store, *scheduler.Scheduler) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	sched := scheduler.New(scheduler.Options{
		PriorityWorkers: 1, StandardWorkers: 1,
		PriorityCapacity: 4, StandardCapacity: 4,
	}, nil)
	cat, err := catalog.Load("", nil)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return New(cfg, store, sched, cat, nil, nil), store, sched
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]float64{
		"90":      90,
		"1:30":    90,
		"0:01:30": 90,
		"2:05":    125,
		"0.5":     0.5,
	}
	for input, want := range cases {
		got, err := ParseTimestamp(input)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", input, got, want)
		}
	}

	for _, input := range []string{"", "a:b", "1:2:3:4", "-5"} {
		if _, err := ParseTimestamp(input); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("ParseTimestamp(%q) should fail with validation error, got %v", input, err)
		}
	}
}

func TestParseOffsetSubtractive(t *testing.T) {
	got, err := ParseOffset("2:12-1:32")
	if err != nil {
		t.Fatalf("parse offset: %v", err)
	}
	if got != 40 {
		t.Fatalf("expected 40s offset, got %v", got)
	}

	got, err = ParseOffset("0:30")
	if err != nil || got != 30 {
		t.Fatalf("plain offset = %v (%v), want 30", got, err)
	}
}

func TestWorkspaceLifecycle(t *testing.T) {
	base := t.TempDir()
	ws, err := newWorkspace(base, "job-1", nil)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	inner := ws.path("clip.mp4")
	if err := os.WriteFile(inner, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	// A second claim on the same job must be refused while the first holds
	// the lock.
	if _, err := newWorkspace(base, "job-1", nil); err == nil {
		t.Fatal("expected second workspace claim to fail")
	}

	ws.cleanup()
	if _, err := os.Stat(filepath.Join(base, "job-1")); !os.IsNotExist(err) {
		t.Fatal("expected workspace directory to be removed")
	}
}

func TestValidateParams(t *testing.T) {
	valid := []struct {
		kind   string
		params any
	}{
		{KindResync, ResyncParams{VideoURL: "v", AudioURL: "a"}},
		{KindAutoResync, AutoResyncParams{VideoURL: "v", AudioURL: "a", Method: "waveform"}},
		{KindRandomResync, RandomResyncParams{VideoURL: "v"}},
		{KindDownload, DownloadParams{URL: "u"}},
	}
	for _, tc := range valid {
		if err := validateParams(tc.kind, tc.params); err != nil {
			t.Fatalf("validateParams(%s) = %v", tc.kind, err)
		}
	}

	invalid := []struct {
		kind   string
		params any
	}{
		{KindResync, ResyncParams{VideoURL: "v"}},
		{KindAutoResync, AutoResyncParams{VideoURL: "v", AudioURL: "a", Method: "psychic"}},
		{KindRandomResync, RandomResyncParams{}},
		{KindDownload, DownloadParams{}},
		{"mystery", struct{}{}},
	}
	for _, tc := range invalid {
		if err := validateParams(tc.kind, tc.params); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("validateParams(%s) should fail with validation error, got %v", tc.kind, err)
		}
	}
}

func TestSubmitPersistsAndQueues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, store, _ := newTestPipeline(t, cfg)

	record, err := p.Submit(context.Background(), KindResync, ResyncParams{
		VideoURL: "https://example.com/v",
		AudioURL: "https://example.com/a",
	}, "user-1", true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.Queue != scheduler.QueuePriority {
		t.Fatalf("expected priority queue, got %q", record.Queue)
	}

	stored, err := store.GetByID(context.Background(), record.ID)
	if err != nil || stored == nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.Status != jobstore.StatusPending || stored.Kind != KindResync {
		t.Fatalf("unexpected stored record: %+v", stored)
	}
	if !strings.Contains(stored.ParamsJSON, "example.com/v") {
		t.Fatalf("params not persisted: %q", stored.ParamsJSON)
	}
}

func TestSubmitRejectsInvalidParams(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, store, _ := newTestPipeline(t, cfg)

	if _, err := p.Submit(context.Background(), KindResync, ResyncParams{}, "", false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("invalid submission must not be persisted, found %d records", len(records))
	}
}

func TestJobFinishedMarksTerminalStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, store, _ := newTestPipeline(t, cfg)
	ctx := context.Background()

	good := testsupport.NewJob(t, store, KindDownload, false)
	good.OutputPath = "/out/final.mp4"
	if err := store.Update(ctx, good); err != nil {
		t.Fatalf("update: %v", err)
	}
	p.JobFinished(scheduler.Job{ID: good.ID, Kind: good.Kind}, scheduler.QueueStandard, 0, nil)

	stored, err := store.GetByID(ctx, good.ID)
	if err != nil || stored == nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != jobstore.StatusCompleted || stored.OutputPath != "/out/final.mp4" {
		t.Fatalf("unexpected completed record: %+v", stored)
	}

	bad := testsupport.NewJob(t, store, KindDownload, false)
	runErr := services.Wrap(services.ErrNotFound, "acquire", "download", "video not found", nil)
	p.JobFinished(scheduler.Job{ID: bad.ID, Kind: bad.Kind}, scheduler.QueueStandard, 0, runErr)

	stored, err = store.GetByID(ctx, bad.ID)
	if err != nil || stored == nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != jobstore.StatusFailed || stored.UserMessage == "" {
		t.Fatalf("unexpected failed record: %+v", stored)
	}
}

// stubExtractor writes yt-dlp and ffprobe stand-ins good enough to walk a
// download job end to end.
func stubExtractor(t *testing.T, cfg *config.Config) {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	ytdlp := `#!/bin/sh
prev=""
out=""
for a in "$@"; do
  if [ "$a" = "-J" ]; then
    echo '{"title":"Stub Clip","duration":30,"uploader":"stub"}'
    exit 0
  fi
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
head -c 4096 /dev/zero > "$out"
`
	ffprobe := `#!/bin/sh
echo '{"streams":[{"codec_type":"video"}],"format":{"duration":"30.0","size":"4096"}}'
`
	if err := os.WriteFile(filepath.Join(binDir, "yt-dlp"), []byte(ytdlp), 0o755); err != nil {
		t.Fatalf("write yt-dlp stub: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "ffprobe"), []byte(ffprobe), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	cfg.Tools.Downloader = filepath.Join(binDir, "yt-dlp")
	cfg.Tools.FFprobe = filepath.Join(binDir, "ffprobe")
}

func TestRunDownloadDeliversOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stubExtractor(t, cfg)
	p, store, _ := newTestPipeline(t, cfg)
	ctx := context.Background()

	record := testsupport.NewJob(t, store, KindDownload, false)
	params, err := encodeParams(DownloadParams{URL: "https://example.com/watch?v=abc"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if err := p.run(ctx, scheduler.Job{ID: record.ID, Kind: KindDownload, Params: params}); err != nil {
		t.Fatalf("run: %v", err)
	}

	stored, err := store.GetByID(ctx, record.ID)
	if err != nil || stored == nil {
		t.Fatalf("get: %v", err)
	}
	if stored.OutputPath == "" {
		t.Fatal("expected an output path on the record")
	}
	if !strings.HasPrefix(stored.OutputPath, cfg.Paths.OutputDir) {
		t.Fatalf("output delivered outside the output dir: %q", stored.OutputPath)
	}
	if !strings.Contains(filepath.Base(stored.OutputPath), "Stub Clip") {
		t.Fatalf("expected sanitized title in file name: %q", stored.OutputPath)
	}
	if _, err := os.Stat(stored.OutputPath); err != nil {
		t.Fatalf("delivered file missing: %v", err)
	}

	// Workspace must be cleaned up afterwards.
	if _, err := os.Stat(filepath.Join(cfg.Paths.WorkspaceDir, record.ID)); !os.IsNotExist(err) {
		t.Fatal("expected workspace to be removed")
	}
}

// stubFFmpeg records every ffmpeg invocation's arguments and fakes an
// output file at the final argument.
func stubFFmpeg(t *testing.T, cfg *config.Config, argsFile string) {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "ffmpeg-bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"" + argsFile + "\"\n" +
		"for a in \"$@\"; do last=\"$a\"; done\n" +
		"head -c 4096 /dev/zero > \"$last\"\n"
	path := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	cfg.Tools.FFmpeg = path
}

func TestRunDownloadTrimUsesDownloadLimits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stubExtractor(t, cfg)
	argsFile := filepath.Join(t.TempDir(), "ffmpeg-args")
	stubFFmpeg(t, cfg, argsFile)
	cfg.Limits.MaxSourceSeconds = 45
	p, store, _ := newTestPipeline(t, cfg)
	ctx := context.Background()

	// An audio trim longer than the plain download limit is shortened to it.
	record := testsupport.NewJob(t, store, KindDownload, false)
	params, err := encodeParams(DownloadParams{
		URL:       "https://example.com/track",
		AudioOnly: true,
		Start:     "0:10",
		End:       "2:10",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := p.run(ctx, scheduler.Job{ID: record.ID, Kind: KindDownload, Params: params}); err != nil {
		t.Fatalf("run: %v", err)
	}
	invocations, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read ffmpeg args: %v", err)
	}
	if !strings.Contains(string(invocations), "-t 45.000") {
		t.Fatalf("expected audio trim shortened to the download limit: %s", invocations)
	}

	// A high quality video trim keeps its full requested length under the
	// larger allowance.
	record = testsupport.NewJob(t, store, KindDownload, false)
	params, err = encodeParams(DownloadParams{
		URL:         "https://example.com/watch?v=abc",
		Start:       "0:10",
		End:         "2:10",
		HighQuality: true,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := p.run(ctx, scheduler.Job{ID: record.ID, Kind: KindDownload, Params: params}); err != nil {
		t.Fatalf("run: %v", err)
	}
	invocations, err = os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read ffmpeg args: %v", err)
	}
	if !strings.Contains(string(invocations), "-t 120.000") {
		t.Fatalf("expected high quality trim to keep its requested length: %s", invocations)
	}
}

func TestRunResyncRejectsLateMarks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stubExtractor(t, cfg)
	p, store, _ := newTestPipeline(t, cfg)
	ctx := context.Background()

	// The stubbed tools report 30s sources.
	record := testsupport.NewJob(t, store, KindResync, false)
	params, err := encodeParams(ResyncParams{
		VideoURL:   "https://example.com/watch?v=abc",
		AudioURL:   "https://example.com/track",
		VideoStart: "95",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	err = p.run(ctx, scheduler.Job{ID: record.ID, Kind: KindResync, Params: params})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for late video start, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds duration") {
		t.Fatalf("unexpected error detail: %v", err)
	}
	if msg := services.UserMessage(err); msg != "The requested start time is past the end of the media." {
		t.Fatalf("unexpected user message: %q", msg)
	}

	record = testsupport.NewJob(t, store, KindResync, false)
	params, err = encodeParams(ResyncParams{
		VideoURL:    "https://example.com/watch?v=abc",
		AudioURL:    "https://example.com/track",
		AudioOffset: "2:00",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	err = p.run(ctx, scheduler.Job{ID: record.ID, Kind: KindResync, Params: params})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for late audio offset, got %v", err)
	}
	if !strings.Contains(err.Error(), "audio offset") {
		t.Fatalf("unexpected error detail: %v", err)
	}
}
