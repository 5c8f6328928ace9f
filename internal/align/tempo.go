package align

import "math"

const (
	onsetFrameSize = 1024
	onsetHop       = 512

	minTempoBPM   = 60
	maxTempoBPM   = 200
	startTempoBPM = 120

	// Windows quieter than this fraction of the loudest window are lead-in
	// silence or chatter, not the track itself.
	quietWindowRatio = 0.1
)

// Tempo estimates an integer BPM for the given mono samples by
// autocorrelating the onset strength envelope. Candidate lags are weighted
// by a log-gaussian prior centered on startTempoBPM so ambiguous octave
// choices resolve toward typical song tempos. Returns 0 when the signal is
// too short or featureless to track.
func Tempo(samples []float64, rate int) int {
	if rate <= 0 {
		return 0
	}
	envelope := onsetEnvelope(samples, onsetFrameSize, onsetHop)
	if len(envelope) == 0 {
		return 0
	}

	frameRate := float64(rate) / float64(onsetHop)
	minLag := int(frameRate * 60 / maxTempoBPM)
	maxLag := int(frameRate * 60 / minTempoBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(envelope) {
		maxLag = len(envelope) - 1
	}
	if maxLag <= minLag {
		return 0
	}

	autocorr := make([]float64, maxLag+1)
	bestLag := 0
	bestScore := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		for i := lag; i < len(envelope); i++ {
			sum += envelope[i] * envelope[i-lag]
		}
		autocorr[lag] = sum
		bpm := frameRate * 60 / float64(lag)
		weight := tempoPrior(bpm)
		if score := sum * weight; score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}
	if bestLag == 0 || bestScore == 0 {
		return 0
	}

	// Refine the integer lag by fitting a parabola through the peak and
	// its neighbours. One envelope frame spans tens of milliseconds, so
	// the raw lag alone quantizes the tempo by several BPM.
	lag := float64(bestLag)
	if bestLag > minLag && bestLag < maxLag {
		prev := autocorr[bestLag-1]
		peak := autocorr[bestLag]
		next := autocorr[bestLag+1]
		if denom := prev - 2*peak + next; denom != 0 {
			shift := 0.5 * (prev - next) / denom
			if shift > -1 && shift < 1 {
				lag += shift
			}
		}
	}

	bpm := frameRate * 60 / lag
	return int(math.Round(bpm))
}

// tempoPrior is a log-gaussian weight favouring tempos near startTempoBPM.
func tempoPrior(bpm float64) float64 {
	if bpm <= 0 {
		return 0
	}
	x := math.Log2(bpm / startTempoBPM)
	return math.Exp(-0.5 * x * x / (1.0 * 1.0))
}

// TrackStart returns the sample index where the track proper begins:
// the first one-second window whose energy reaches quietWindowRatio of the
// loudest window. Returns 0 for uniformly quiet input.
func TrackStart(samples []float64, rate int) int {
	if rate <= 0 {
		return 0
	}
	energies := windowEnergies(samples, rate)
	if len(energies) == 0 {
		return 0
	}
	threshold := maxFloat(energies) * quietWindowRatio
	for i, energy := range energies {
		if energy >= threshold {
			return i * rate
		}
	}
	return 0
}

// beatTimes detects beat onsets and returns their positions in seconds.
// Peaks in the onset envelope above one standard deviation over the mean
// count as beats, with a minimum spacing derived from the estimated tempo.
func beatTimes(samples []float64, rate int) []float64 {
	envelope := onsetEnvelope(samples, onsetFrameSize, onsetHop)
	if len(envelope) == 0 {
		return nil
	}

	mean, std := meanStd(envelope)
	threshold := mean + std

	frameRate := float64(rate) / float64(onsetHop)
	minGapFrames := int(frameRate * 60 / maxTempoBPM / 2)
	if bpm := Tempo(samples, rate); bpm > 0 {
		minGapFrames = int(frameRate * 60 / float64(bpm) / 2)
	}
	if minGapFrames < 1 {
		minGapFrames = 1
	}

	var beats []float64
	lastFrame := -minGapFrames
	for i := 1; i < len(envelope)-1; i++ {
		if envelope[i] < threshold {
			continue
		}
		if envelope[i] < envelope[i-1] || envelope[i] < envelope[i+1] {
			continue
		}
		if i-lastFrame < minGapFrames {
			continue
		}
		beats = append(beats, float64(i)/frameRate)
		lastFrame = i
	}
	return beats
}

// interBeatIntervals returns the successive differences of beat times.
func interBeatIntervals(beats []float64) []float64 {
	if len(beats) < 2 {
		return nil
	}
	intervals := make([]float64, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals[i-1] = beats[i] - beats[i-1]
	}
	return intervals
}
