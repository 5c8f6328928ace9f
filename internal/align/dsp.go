package align

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// normalizeSignal scales samples so the largest magnitude is 1. A silent
// signal is returned unchanged rather than dividing by zero.
func normalizeSignal(samples []float64) []float64 {
	peak := 0.0
	for _, v := range samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	out := make([]float64, len(samples))
	if peak == 0 {
		copy(out, samples)
		return out
	}
	for i, v := range samples {
		out[i] = v / peak
	}
	return out
}

// correlateValid computes the valid-mode cross-correlation of search against
// excerpt: result[i] = sum_j excerpt[j] * search[i+j]. The search signal must
// be at least as long as the excerpt. Computed via FFT so minute-long signals
// stay tractable.
func correlateValid(search, excerpt []float64) []float64 {
	n := len(search)
	m := len(excerpt)
	if m == 0 || n < m {
		return nil
	}

	size := nextPow2(n + m - 1)
	fft := fourier.NewFFT(size)

	padded := make([]float64, size)
	copy(padded, search)
	searchCoeffs := fft.Coefficients(nil, padded)

	reversed := make([]float64, size)
	for i := 0; i < m; i++ {
		reversed[i] = excerpt[m-1-i]
	}
	excerptCoeffs := fft.Coefficients(nil, reversed)

	for i := range searchCoeffs {
		searchCoeffs[i] *= excerptCoeffs[i]
	}

	full := fft.Sequence(nil, searchCoeffs)
	scale := 1 / float64(size)

	// Convolution with the reversed excerpt: valid correlation lags start
	// at index m-1 of the full linear convolution.
	out := make([]float64, n-m+1)
	for i := range out {
		out[i] = full[m-1+i] * scale
	}
	return out
}

func nextPow2(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// pearson computes the Pearson correlation coefficient of two equal-length
// sequences, or 0 when undefined.
func pearson(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// onsetEnvelope computes a spectral-flux style onset strength signal from
// frame energies: the positive first difference of per-frame RMS energy.
func onsetEnvelope(samples []float64, frameSize, hop int) []float64 {
	if frameSize <= 0 || hop <= 0 || len(samples) < frameSize {
		return nil
	}
	frames := 1 + (len(samples)-frameSize)/hop
	energies := make([]float64, frames)
	for i := 0; i < frames; i++ {
		start := i * hop
		var sum float64
		for _, v := range samples[start : start+frameSize] {
			sum += v * v
		}
		energies[i] = math.Sqrt(sum / float64(frameSize))
	}

	envelope := make([]float64, frames)
	for i := 1; i < frames; i++ {
		if d := energies[i] - energies[i-1]; d > 0 {
			envelope[i] = d
		}
	}
	return envelope
}

// windowEnergies sums squared samples over fixed-length windows.
func windowEnergies(samples []float64, windowLen int) []float64 {
	if windowLen <= 0 {
		return nil
	}
	count := len(samples) / windowLen
	out := make([]float64, count)
	for i := 0; i < count; i++ {
		var sum float64
		for _, v := range samples[i*windowLen : (i+1)*windowLen] {
			sum += v * v
		}
		out[i] = sum
	}
	return out
}

func maxFloat(values []float64) float64 {
	best := 0.0
	for _, v := range values {
		if v > best {
			best = v
		}
	}
	return best
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
