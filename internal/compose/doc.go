// Package compose assembles final remix videos with ffmpeg. It trims the
// video and audio sources to the configured clip length, mixes the
// replacement audio (optionally with an SFX bed), draws the service
// overlay, and validates that the produced file is playable.
package compose
