// Package acquire downloads remote media sources. Plain media URLs are
// fetched directly over HTTP; everything else goes through the yt-dlp
// extractor with cookie support, format ladders, and capped exponential
// backoff. When an extractor is refused, page-level fallbacks take over.
// The package also searches platforms for catalog tracks by artist and
// title.
package acquire
