package main

import (
	"strings"
	"testing"

	"resyncd/internal/ipc"
)

func TestProgressLabel(t *testing.T) {
	cases := []struct {
		name string
		view ipc.JobView
		want string
	}{
		{"completed", ipc.JobView{Status: "completed", ProgressStage: "deliver", ProgressPercent: 95}, "done"},
		{"failed", ipc.JobView{Status: "failed"}, "failed"},
		{"running", ipc.JobView{Status: "running", ProgressStage: "compose", ProgressPercent: 80}, "compose 80%"},
		{"pending", ipc.JobView{Status: "pending"}, "-"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := progressLabel(tc.view); got != tc.want {
				t.Fatalf("progressLabel = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestJobResult(t *testing.T) {
	if got := jobResult(ipc.JobView{OutputPath: "/out/Clip-abc123.mp4"}); got != "Clip-abc123.mp4" {
		t.Fatalf("unexpected result %q", got)
	}
	if got := jobResult(ipc.JobView{UserMessage: "Processing failed: source too long"}); !strings.Contains(got, "too long") {
		t.Fatalf("unexpected result %q", got)
	}
	if got := jobResult(ipc.JobView{}); got != "-" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestJobRowsRenderInTable(t *testing.T) {
	views := []ipc.JobView{
		{ID: "0123456789abcdef", Kind: "resync", Status: "running", ProgressStage: "align", ProgressPercent: 60, Queue: "priority"},
		{ID: "fedcba9876543210", Kind: "download", Status: "completed", OutputPath: "/out/Track.mp3"},
	}
	rendered := renderTable([]string{"ID", "Kind", "Status", "Progress", "Queue", "Created", "Result"}, jobRows(views))
	for _, want := range []string{"01234567", "align 60%", "Track.mp3", "priority"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("table missing %q:\n%s", want, rendered)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("unexpected %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("unexpected %q", got)
	}
}
