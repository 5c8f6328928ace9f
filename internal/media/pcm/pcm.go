package pcm

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Options controls which slice of the source is decoded.
type Options struct {
	// SampleRate is the output rate in Hz. Required.
	SampleRate int
	// Offset is the start position in seconds.
	Offset float64
	// Duration limits the decoded length in seconds. Zero decodes to the end.
	Duration float64
}

// Decode extracts a mono sample excerpt from any media file by piping
// ffmpeg's s16le output. Samples are scaled to [-1, 1).
func Decode(ctx context.Context, ffmpegBinary, path string, opts Options) ([]float64, error) {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("pcm decode: empty path")
	}
	if opts.SampleRate <= 0 {
		return nil, errors.New("pcm decode: sample rate must be positive")
	}

	args := []string{"-v", "error", "-nostdin"}
	if opts.Offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", opts.Offset))
	}
	if opts.Duration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", opts.Duration))
	}
	args = append(args,
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", opts.SampleRate),
		"-f", "s16le",
		"-",
	)

	cmd := exec.CommandContext(ctx, ffmpegBinary, args...) //nolint:gosec
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg pcm decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	samples := FromS16LE(stdout.Bytes())
	if len(samples) == 0 {
		return nil, fmt.Errorf("ffmpeg pcm decode: no samples from %s", path)
	}
	return samples, nil
}

// ExtractWAV writes a mono PCM WAV copy of the source's audio track, used
// when a pipeline hands audio to later analysis or delivery steps.
func ExtractWAV(ctx context.Context, ffmpegBinary, src, dst string, sampleRate int) error {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if sampleRate <= 0 {
		return errors.New("pcm extract: sample rate must be positive")
	}

	args := []string{
		"-v", "error", "-nostdin", "-y",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-c:a", "pcm_s16le",
		dst,
	}
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg wav extract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// FromS16LE converts little-endian signed 16-bit PCM bytes to float64
// samples in [-1, 1). A trailing odd byte is dropped.
func FromS16LE(data []byte) []float64 {
	count := len(data) / 2
	samples := make([]float64, count)
	for i := 0; i < count; i++ {
		raw := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		samples[i] = float64(raw) / 32768.0
	}
	return samples
}
