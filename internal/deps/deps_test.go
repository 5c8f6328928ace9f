package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resyncd/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
}

func TestCheckBinariesEmptyCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Unset"}})
	if results[0].Available {
		t.Fatal("expected unconfigured command to be unavailable")
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %q", results[0].Detail)
	}
}

func TestVerifyNamesMissingBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.FFmpeg = "clearly-not-present-ffmpeg"
	cfg.Tools.FFprobe = "clearly-not-present-ffprobe"
	cfg.Tools.Downloader = "clearly-not-present-downloader"

	err := Verify(&cfg)
	if err == nil {
		t.Fatal("expected error for missing binaries")
	}
	if !strings.Contains(err.Error(), "FFmpeg") || !strings.Contains(err.Error(), "FFprobe") {
		t.Fatalf("error missing binary names: %v", err)
	}
	// The downloader is optional and must not fail verification.
	if strings.Contains(err.Error(), "Downloader") {
		t.Fatalf("optional downloader reported as required: %v", err)
	}
}
