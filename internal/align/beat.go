package align

// BeatOffset aligns the rhythmic grid of excerpt against search by
// comparing inter-beat intervals. A window of consecutive soundtrack
// intervals slides over the full set and the Pearson correlation of the
// interval sequences picks the best start. The returned offset is the beat
// time at that window start, in seconds. Returns 0, false when either
// signal has too few detectable beats.
func BeatOffset(search, excerpt []float64, rate int) (float64, bool) {
	searchBeats := beatTimes(search, rate)
	excerptBeats := beatTimes(excerpt, rate)

	searchIntervals := interBeatIntervals(searchBeats)
	excerptIntervals := interBeatIntervals(excerptBeats)
	if len(excerptIntervals) < 2 || len(searchIntervals) < len(excerptIntervals) {
		return 0, false
	}

	window := len(excerptIntervals)
	bestStart := -1
	bestScore := 0.0
	for start := 0; start+window <= len(searchIntervals); start++ {
		score := pearson(searchIntervals[start:start+window], excerptIntervals)
		if bestStart < 0 || score > bestScore {
			bestScore = score
			bestStart = start
		}
	}
	if bestStart < 0 {
		return 0, false
	}
	return searchBeats[bestStart], true
}
