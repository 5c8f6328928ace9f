// Package align locates where a music track occurs inside a video
// soundtrack. It runs two independent detectors over ffmpeg-decoded PCM:
// a waveform cross-correlation search and a beat-grid comparison of
// inter-beat intervals. The package also estimates track tempo for
// tempo-matched soundtrack selection.
package align
