package align

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"resyncd/internal/config"
	"resyncd/internal/logging"
	"resyncd/internal/media/pcm"
)

// Method selects which detectors the analyzer runs.
type Method string

const (
	MethodWaveform Method = "waveform"
	MethodBeat     Method = "beat"
	MethodBoth     Method = "both"
)

// Agreement describes how the waveform and beat detectors relate when both
// run. The waveform result is always the one used.
type Agreement string

const (
	AgreementNone      Agreement = ""
	AgreementConsensus Agreement = "consensus"
	AgreementDivergent Agreement = "divergent"
)

// agreementWindowSecs is the largest waveform/beat disagreement still
// reported as consensus.
const agreementWindowSecs = 2.0

// errNoDetectorResult reports that no detector produced a usable offset.
var errNoDetectorResult = errors.New("no usable alignment result")

// clampTailSecs keeps at least this much soundtrack after the offset so the
// composition never starts inside the final seconds.
const clampTailSecs = 30.0

// Result is the outcome of a soundtrack alignment.
type Result struct {
	// Offset is the chosen start position in the soundtrack, in seconds.
	Offset float64
	// Method is the detector that produced Offset.
	Method Method
	// Agreement is set when both detectors ran.
	Agreement Agreement
	// WaveformOffset and BeatOffset carry the individual detector results
	// for logging. Negative when a detector did not produce one.
	WaveformOffset float64
	BeatOffset     float64
	// Fallback is true when analysis failed and Offset degraded to zero.
	Fallback bool
}

// Analyzer locates where a music track occurs inside a soundtrack.
type Analyzer struct {
	ffmpeg   string
	settings config.Analysis
	logger   *slog.Logger
}

// NewAnalyzer returns an Analyzer using the given ffmpeg binary and
// analysis windows.
func NewAnalyzer(ffmpegBinary string, settings config.Analysis, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{
		ffmpeg:   ffmpegBinary,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "align"),
	}
}

// Align finds the offset in soundtrackPath where musicPath best fits.
// soundtrackDuration is the soundtrack's full length in seconds and bounds
// the result. Analysis failures are not fatal: the result degrades to
// offset zero with Fallback set, and the cause is logged.
func (a *Analyzer) Align(ctx context.Context, soundtrackPath, musicPath string, soundtrackDuration float64, method Method) Result {
	result, err := a.align(ctx, soundtrackPath, musicPath, method)
	if err != nil {
		a.logger.Warn("alignment failed, starting from the beginning",
			logging.String("soundtrack", soundtrackPath),
			logging.String("method", string(method)),
			logging.Error(err))
		return Result{Method: method, WaveformOffset: -1, BeatOffset: -1, Fallback: true}
	}
	result.Offset = ClampOffset(result.Offset, soundtrackDuration)
	a.logger.Info("alignment complete",
		logging.Float64("offset", result.Offset),
		logging.String("method", string(result.Method)),
		logging.String("agreement", string(result.Agreement)))
	return result
}

func (a *Analyzer) align(ctx context.Context, soundtrackPath, musicPath string, method Method) (Result, error) {
	result := Result{Method: method, WaveformOffset: -1, BeatOffset: -1}

	var waveformOffset, beatOffset float64
	var waveformOK, beatOK bool

	if method == MethodWaveform || method == MethodBoth {
		offset, err := a.waveformOffset(ctx, soundtrackPath, musicPath)
		if err != nil {
			if method == MethodWaveform {
				return result, err
			}
			a.logger.Warn("waveform detector failed", logging.Error(err))
		} else {
			waveformOffset, waveformOK = offset, true
			result.WaveformOffset = offset
		}
	}

	if method == MethodBeat || method == MethodBoth {
		offset, err := a.beatOffset(ctx, soundtrackPath, musicPath)
		if err != nil {
			if method == MethodBeat {
				return result, err
			}
			a.logger.Warn("beat detector failed", logging.Error(err))
		} else {
			beatOffset, beatOK = offset, true
			result.BeatOffset = offset
		}
	}

	switch {
	case waveformOK && beatOK:
		// The waveform match is sample-accurate where beat tracking only
		// resolves to the rhythmic grid, so it wins regardless.
		result.Offset = waveformOffset
		result.Method = MethodWaveform
		if math.Abs(waveformOffset-beatOffset) <= agreementWindowSecs {
			result.Agreement = AgreementConsensus
		} else {
			result.Agreement = AgreementDivergent
		}
	case waveformOK:
		result.Offset = waveformOffset
		result.Method = MethodWaveform
	case beatOK:
		result.Offset = beatOffset
		result.Method = MethodBeat
	default:
		return result, errNoDetectorResult
	}
	return result, nil
}

func (a *Analyzer) waveformOffset(ctx context.Context, soundtrackPath, musicPath string) (float64, error) {
	rate := a.settings.SampleRate
	search, err := pcm.Decode(ctx, a.ffmpeg, soundtrackPath, pcm.Options{
		SampleRate: rate,
		Duration:   float64(a.settings.WaveformSearchSecs),
	})
	if err != nil {
		return 0, err
	}
	excerpt, err := pcm.Decode(ctx, a.ffmpeg, musicPath, pcm.Options{
		SampleRate: rate,
		Duration:   float64(a.settings.ExcerptSeconds),
	})
	if err != nil {
		return 0, err
	}
	if len(excerpt) > len(search) {
		excerpt = excerpt[:len(search)]
	}
	offset, ok := WaveformOffset(search, excerpt, rate)
	if !ok {
		return 0, errNoDetectorResult
	}
	return offset, nil
}

func (a *Analyzer) beatOffset(ctx context.Context, soundtrackPath, musicPath string) (float64, error) {
	rate := a.settings.SampleRate
	search, err := pcm.Decode(ctx, a.ffmpeg, soundtrackPath, pcm.Options{
		SampleRate: rate,
		Duration:   float64(a.settings.BeatSearchSecs),
	})
	if err != nil {
		return 0, err
	}
	excerpt, err := pcm.Decode(ctx, a.ffmpeg, musicPath, pcm.Options{
		SampleRate: rate,
		Duration:   float64(a.settings.BeatExcerptSecs),
	})
	if err != nil {
		return 0, err
	}
	offset, ok := BeatOffset(search, excerpt, rate)
	if !ok {
		return 0, errNoDetectorResult
	}
	return offset, nil
}

// TrackTempo estimates the BPM of a music file. The detector skips any
// quiet lead-in and analyzes a fixed segment from where the track proper
// starts.
func (a *Analyzer) TrackTempo(ctx context.Context, path string) (int, error) {
	rate := a.settings.SampleRate
	samples, err := pcm.Decode(ctx, a.ffmpeg, path, pcm.Options{SampleRate: rate})
	if err != nil {
		return 0, err
	}
	start := TrackStart(samples, rate)
	segment := samples[start:]
	if limit := a.settings.TempoSegmentSecs * rate; limit > 0 && len(segment) > limit {
		segment = segment[:limit]
	}
	bpm := Tempo(segment, rate)
	if bpm == 0 {
		return 0, errNoDetectorResult
	}
	return bpm, nil
}

// ClampOffset bounds an alignment offset so the composition keeps at least
// clampTailSecs of soundtrack after the start point. Never negative.
func ClampOffset(offset, soundtrackDuration float64) float64 {
	if soundtrackDuration > 0 {
		if limit := soundtrackDuration - clampTailSecs; offset > limit {
			offset = limit
		}
	}
	if offset < 0 {
		return 0
	}
	return offset
}
