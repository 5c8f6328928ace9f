package align

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"resyncd/internal/config"
)

// synthNoise returns deterministic pseudo-random samples in [-amp, amp].
func synthNoise(n int, amp float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * (2*rng.Float64() - 1)
	}
	return out
}

// synthClicks lays decaying click bursts at the given times.
func synthClicks(times []float64, rate int, total float64) []float64 {
	out := make([]float64, int(total*float64(rate)))
	for _, t := range times {
		start := int(t * float64(rate))
		for i := 0; i < 100 && start+i < len(out); i++ {
			out[start+i] = 0.9 * math.Pow(0.95, float64(i))
		}
	}
	return out
}

// clickTimes converts a start time and interval sequence to beat times.
func clickTimes(start float64, intervals []float64) []float64 {
	times := []float64{start}
	for _, iv := range intervals {
		times = append(times, times[len(times)-1]+iv)
	}
	return times
}

func TestCorrelateValidMatchesNaive(t *testing.T) {
	search := []float64{1, 2, 3, 4, 5, 4, 3, 2}
	excerpt := []float64{3, 4, 5}

	got := correlateValid(search, excerpt)
	if len(got) != len(search)-len(excerpt)+1 {
		t.Fatalf("unexpected result length: %d", len(got))
	}
	for i := range got {
		var want float64
		for j := range excerpt {
			want += excerpt[j] * search[i+j]
		}
		if math.Abs(got[i]-want) > 1e-6 {
			t.Fatalf("lag %d: got %v, want %v", i, got[i], want)
		}
	}
}

func TestWaveformOffsetFindsEmbeddedExcerpt(t *testing.T) {
	const rate = 1000
	excerpt := synthNoise(2*rate, 1.0, 7)
	search := synthNoise(10*rate, 0.01, 11)
	for i, v := range excerpt {
		search[6*rate+i] += 0.8 * v
	}

	offset, ok := WaveformOffset(search, excerpt, rate)
	if !ok {
		t.Fatal("expected a waveform match")
	}
	if math.Abs(offset-6.0) > 0.05 {
		t.Fatalf("expected offset near 6.0s, got %v", offset)
	}
}

func TestWaveformOffsetPrefersLaterRepeat(t *testing.T) {
	const rate = 1000
	excerpt := synthNoise(rate, 1.0, 21)
	search := synthNoise(10*rate, 0.01, 22)
	for i, v := range excerpt {
		search[2*rate+i] += 0.8 * v
		search[7*rate+i] += 0.8 * v
	}

	offset, ok := WaveformOffset(search, excerpt, rate)
	if !ok {
		t.Fatal("expected a waveform match")
	}
	if math.Abs(offset-7.0) > 0.05 {
		t.Fatalf("expected the later occurrence near 7.0s, got %v", offset)
	}
}

func TestWaveformOffsetRejectsShortSearch(t *testing.T) {
	if _, ok := WaveformOffset(make([]float64, 10), make([]float64, 20), 1000); ok {
		t.Fatal("expected no match when search is shorter than the excerpt")
	}
}

func TestTempoDetectsClickTrain(t *testing.T) {
	const rate = 22050
	var times []float64
	for ts := 0.0; ts < 30; ts += 0.5 {
		times = append(times, ts)
	}
	samples := synthClicks(times, rate, 30)

	bpm := Tempo(samples, rate)
	if bpm < 112 || bpm > 128 {
		t.Fatalf("expected tempo near 120 BPM, got %d", bpm)
	}
}

func TestTempoSilence(t *testing.T) {
	if bpm := Tempo(make([]float64, 22050*10), 22050); bpm != 0 {
		t.Fatalf("expected 0 BPM for silence, got %d", bpm)
	}
}

func TestTrackStartSkipsQuietLead(t *testing.T) {
	const rate = 1000
	samples := synthNoise(3*rate, 0.001, 3)
	for i := 0; i < 5*rate; i++ {
		samples = append(samples, 0.5*math.Sin(2*math.Pi*220*float64(i)/rate))
	}

	if start := TrackStart(samples, rate); start != 3*rate {
		t.Fatalf("expected start at sample %d, got %d", 3*rate, start)
	}
}

func TestBeatOffsetMatchesIntervalPattern(t *testing.T) {
	const rate = 8000
	pattern := []float64{0.5, 0.75, 0.5, 0.625, 0.875, 0.5, 0.75, 0.625, 0.5, 0.875, 0.625, 0.75}
	search := synthClicks(clickTimes(3.0, pattern), rate, 14)
	excerpt := synthClicks(clickTimes(0.2, pattern[4:10]), rate, 6)

	offset, ok := BeatOffset(search, excerpt, rate)
	if !ok {
		t.Fatal("expected a beat match")
	}
	want := 3.0 + pattern[0] + pattern[1] + pattern[2] + pattern[3]
	if math.Abs(offset-want) > 0.3 {
		t.Fatalf("expected offset near %vs, got %v", want, offset)
	}
}

func TestBeatOffsetTooFewBeats(t *testing.T) {
	if _, ok := BeatOffset(make([]float64, 8000*5), make([]float64, 8000*2), 8000); ok {
		t.Fatal("expected no beat match for silence")
	}
}

func TestClampOffset(t *testing.T) {
	cases := []struct {
		offset   float64
		duration float64
		want     float64
	}{
		{offset: 200, duration: 400, want: 200},
		{offset: 380, duration: 400, want: 370},
		{offset: 395, duration: 400, want: 370},
		{offset: -5, duration: 400, want: 0},
		{offset: 10, duration: 0, want: 10},
		{offset: 5, duration: 20, want: 0},
	}
	for _, tc := range cases {
		if got := ClampOffset(tc.offset, tc.duration); got != tc.want {
			t.Fatalf("ClampOffset(%v, %v) = %v, want %v", tc.offset, tc.duration, got, tc.want)
		}
	}
}

func TestAlignFallsBackOnDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	analyzer := NewAnalyzer(stub, config.Default().Analysis, nil)
	result := analyzer.Align(context.Background(), "soundtrack.mp4", "music.mp3", 300, MethodBoth)
	if !result.Fallback {
		t.Fatal("expected fallback result")
	}
	if result.Offset != 0 {
		t.Fatalf("expected offset 0 on fallback, got %v", result.Offset)
	}
}
