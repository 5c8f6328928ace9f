package acquire

import (
	"errors"
	"strings"

	"resyncd/internal/services"
)

// classifyOutput maps extractor output onto error markers. Matching is
// substring-based because yt-dlp error text varies between extractors and
// versions.
func classifyOutput(output string) error {
	lowered := strings.ToLower(output)

	switch {
	case containsAny(lowered, "not found", "404", "unavailable", "private video", "removed"):
		return services.ErrNotFound
	case containsAny(lowered, "403", "cookies", "login required", "sign in", "account"):
		return services.ErrAuthRequired
	case containsAny(lowered, "429", "rate limit", "too many requests"):
		return services.ErrRateLimited
	case containsAny(lowered, "requested format is not available", "no video formats", "unsupported url"):
		return services.ErrUnsupportedFormat
	case containsAny(lowered, "timed out", "timeout", "connection", "network", "unable to download", "temporary failure"):
		return services.ErrNetwork
	}
	return services.ErrExternalTool
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

// blockSignal reports whether an extractor failure looks like the source
// refusing to serve us rather than the content being absent. These are the
// failures where a page scrape can still succeed.
func blockSignal(err error) bool {
	return services.Retryable(err) ||
		errors.Is(err, services.ErrAuthRequired) ||
		errors.Is(err, services.ErrExternalTool)
}
