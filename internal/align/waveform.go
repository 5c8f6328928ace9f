package align

const (
	// Offsets later in the soundtrack score slightly higher than earlier
	// ones, so the search prefers the second occurrence of a repeated
	// passage. Intros commonly echo a later chorus and matching the intro
	// would cut the remix off before the interesting part.
	lateBiasFloor = 0.95
	lateBiasCeil  = 1.05
)

// WaveformOffset finds where excerpt best lines up inside search by
// cross-correlating the normalized signals. Both inputs share the sample
// rate given. The returned offset is in seconds from the start of search.
// Returns 0, false when either signal is too short to correlate.
func WaveformOffset(search, excerpt []float64, rate int) (float64, bool) {
	if rate <= 0 || len(excerpt) == 0 || len(search) < len(excerpt) {
		return 0, false
	}

	scores := correlateValid(normalizeSignal(search), normalizeSignal(excerpt))
	if len(scores) == 0 {
		return 0, false
	}

	span := float64(len(scores) - 1)
	bestIdx := 0
	bestScore := 0.0
	for i, score := range scores {
		bias := lateBiasFloor
		if span > 0 {
			bias += (lateBiasCeil - lateBiasFloor) * float64(i) / span
		}
		if v := score * bias; i == 0 || v > bestScore {
			bestScore = v
			bestIdx = i
		}
	}
	return float64(bestIdx) / float64(rate), true
}
