package compose

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resyncd/internal/services"
	"resyncd/internal/testsupport"
)

func writeMediaFixture(t *testing.T, dir, name string) string {
	t.Helper()
	return testsupport.WriteMediaFixture(t, filepath.Join(dir, name), 4096)
}

func writeFFprobeStub(t *testing.T, dir, duration string) string {
	t.Helper()
	script := "#!/bin/sh\n" +
		`echo '{"streams":[{"codec_type":"video"}],"format":{"duration":"` + duration + `","size":"4096"}}'` + "\n"
	path := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	return path
}

func TestTrimVideoArgs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	compositor := NewCompositor(cfg, nil)

	var captured []string
	compositor.WithCommandRunner(func(ctx context.Context, binary string, args ...string) (string, error) {
		captured = args
		return "", nil
	})

	if err := compositor.TrimVideo(context.Background(), "in.mp4", "out.mp4", 12, 0, false); err != nil {
		t.Fatalf("trim video: %v", err)
	}

	joined := strings.Join(captured, " ")
	if !strings.Contains(joined, "-ss 12.000") {
		t.Fatalf("expected start offset in args: %s", joined)
	}
	if !strings.Contains(joined, "-t 60.000") {
		t.Fatalf("expected output-limit default for zero duration: %s", joined)
	}
	if !strings.Contains(joined, "-crf 28") || !strings.Contains(joined, "scale='min(1280,iw)':-2") {
		t.Fatalf("expected standard-quality encode args: %s", joined)
	}
}

func TestTrimHonorsExplicitDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	compositor := NewCompositor(cfg, nil)

	var captured []string
	compositor.WithCommandRunner(func(ctx context.Context, binary string, args ...string) (string, error) {
		captured = args
		return "", nil
	})

	if err := compositor.TrimVideo(context.Background(), "in.mp4", "out.mp4", 0, 120, true); err != nil {
		t.Fatalf("trim video: %v", err)
	}
	if joined := strings.Join(captured, " "); !strings.Contains(joined, "-t 120.000") {
		t.Fatalf("explicit 120s trim should not be shortened: %s", joined)
	}

	if err := compositor.TrimAudio(context.Background(), "in.mp3", "out.mp3", 0, 90); err != nil {
		t.Fatalf("trim audio: %v", err)
	}
	if joined := strings.Join(captured, " "); !strings.Contains(joined, "-t 90.000") {
		t.Fatalf("explicit 90s audio trim should not be shortened: %s", joined)
	}
}

func TestTrimVideoHighQuality(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	compositor := NewCompositor(cfg, nil)

	var captured []string
	compositor.WithCommandRunner(func(ctx context.Context, binary string, args ...string) (string, error) {
		captured = args
		return "", nil
	})

	if err := compositor.TrimVideo(context.Background(), "in.mp4", "out.mp4", 0, 30, true); err != nil {
		t.Fatalf("trim video: %v", err)
	}

	joined := strings.Join(captured, " ")
	if !strings.Contains(joined, "-crf 23") {
		t.Fatalf("expected high-quality rate factor: %s", joined)
	}
	if strings.Contains(joined, "scale=") {
		t.Fatalf("high quality should keep the source resolution: %s", joined)
	}
}

func TestCombineArgsVariants(t *testing.T) {
	base := CombineRequest{VideoPath: "v.mp4", AudioPath: "a.mp3", OutputPath: "out.mp4"}

	clean := strings.Join(combineArgs(base, false), " ")
	if !strings.Contains(clean, "-c:v copy") || strings.Contains(clean, "drawtext") {
		t.Fatalf("expected plain stream copy: %s", clean)
	}

	overlay := strings.Join(combineArgs(base, true), " ")
	if !strings.Contains(overlay, "drawtext") || !strings.Contains(overlay, "libx264") {
		t.Fatalf("expected overlay re-encode: %s", overlay)
	}

	withSFX := base
	withSFX.SFXPath = "sfx.mp3"
	mixed := strings.Join(combineArgs(withSFX, false), " ")
	if !strings.Contains(mixed, "amix=inputs=2:duration=first:weights=0.8 0.6") {
		t.Fatalf("expected amix filter: %s", mixed)
	}
	if !strings.Contains(mixed, "-c:v copy") {
		t.Fatalf("sfx mix without overlay should copy video: %s", mixed)
	}
}

func TestCombineSuccess(t *testing.T) {
	dir := t.TempDir()
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFprobe = writeFFprobeStub(t, dir, "42.5")

	video := writeMediaFixture(t, dir, "video.mp4")
	audio := writeMediaFixture(t, dir, "audio.mp3")
	output := filepath.Join(dir, "final.mp4")

	compositor := NewCompositor(cfg, nil)
	compositor.WithCommandRunner(func(ctx context.Context, binary string, args ...string) (string, error) {
		return "", os.WriteFile(output, bytes.Repeat([]byte{0x1}, 2048), 0o644)
	})

	result, err := compositor.Combine(context.Background(), CombineRequest{
		VideoPath:  video,
		AudioPath:  audio,
		OutputPath: output,
		Overlay:    true,
	})
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if result.OverlaySkipped {
		t.Fatal("overlay should not be skipped on success")
	}
}

func TestCombineRetriesWithoutOverlay(t *testing.T) {
	dir := t.TempDir()
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFprobe = writeFFprobeStub(t, dir, "42.5")

	video := writeMediaFixture(t, dir, "video.mp4")
	audio := writeMediaFixture(t, dir, "audio.mp3")
	output := filepath.Join(dir, "final.mp4")

	var calls [][]string
	compositor := NewCompositor(cfg, nil)
	compositor.WithCommandRunner(func(ctx context.Context, binary string, args ...string) (string, error) {
		calls = append(calls, args)
		if len(calls) == 1 {
			return "Cannot find a valid font for drawtext", errors.New("exit status 1")
		}
		return "", os.WriteFile(output, bytes.Repeat([]byte{0x1}, 2048), 0o644)
	})

	result, err := compositor.Combine(context.Background(), CombineRequest{
		VideoPath:  video,
		AudioPath:  audio,
		OutputPath: output,
		Overlay:    true,
	})
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if !result.OverlaySkipped {
		t.Fatal("expected overlay skip on font failure")
	}
	if len(calls) != 2 {
		t.Fatalf("expected two ffmpeg runs, got %d", len(calls))
	}
	if strings.Contains(strings.Join(calls[1], " "), "drawtext") {
		t.Fatal("retry must not request the overlay")
	}
}

func TestCombineRejectsMissingInputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	compositor := NewCompositor(cfg, nil)

	_, err := compositor.Combine(context.Background(), CombineRequest{
		VideoPath:  filepath.Join(t.TempDir(), "absent.mp4"),
		AudioPath:  filepath.Join(t.TempDir(), "absent.mp3"),
		OutputPath: "out.mp4",
	})
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected processing error, got %v", err)
	}
}

func TestCombineDeletesUnplayableOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFprobe = writeFFprobeStub(t, dir, "0")

	video := writeMediaFixture(t, dir, "video.mp4")
	audio := writeMediaFixture(t, dir, "audio.mp3")
	output := filepath.Join(dir, "final.mp4")

	compositor := NewCompositor(cfg, nil)
	compositor.WithCommandRunner(func(ctx context.Context, binary string, args ...string) (string, error) {
		return "", os.WriteFile(output, bytes.Repeat([]byte{0x1}, 2048), 0o644)
	})

	_, err := compositor.Combine(context.Background(), CombineRequest{
		VideoPath:  video,
		AudioPath:  audio,
		OutputPath: output,
	})
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected processing error for zero-duration output, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatal("expected invalid output to be removed")
	}
}

func TestRemoveIgnoresMissingPaths(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "intermediate.mp4")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	Remove(present, filepath.Join(dir, "absent.mp4"), "")

	if _, err := os.Stat(present); !os.IsNotExist(err) {
		t.Fatal("expected intermediate file to be removed")
	}
}
