package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"resyncd/internal/services"
)

// mobileUserAgent is presented on plain HTTP fetches. Some CDNs serve
// different (or no) content to default Go clients.
const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 15_2 like Mac OS X) " +
	"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.2 Mobile/15E148 Safari/604.1"

// directFetcher downloads sources that are already plain media URLs.
type directFetcher struct {
	client   *http.Client
	maxBytes int64
}

func newDirectFetcher(timeout time.Duration, maxBytes int64) *directFetcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &directFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// isDirectMediaURL reports whether the URL points at a media file rather
// than a page an extractor has to unpick.
func isDirectMediaURL(url string) bool {
	trimmed := url
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.ToLower(trimmed)
	return strings.HasSuffix(trimmed, ".mp3") ||
		strings.HasSuffix(trimmed, ".mp4") ||
		strings.HasSuffix(trimmed, ".wav") ||
		strings.HasSuffix(trimmed, ".m4a")
}

// Fetch downloads the URL body straight to outputPath.
func (d *directFetcher) Fetch(ctx context.Context, url, outputPath string) error {
	return fetchToFile(ctx, d.client, url, outputPath, d.maxBytes)
}

// fetchToFile streams an HTTP response body to disk, enforcing the size
// cap while writing so an oversized source never fills the workspace.
func fetchToFile(ctx context.Context, client *http.Client, url, outputPath string, maxBytes int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "acquire", "direct", "invalid source url", err)
	}
	req.Header.Set("User-Agent", mobileUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrNetwork, "acquire", "direct", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrNetwork
		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			marker = services.ErrNotFound
		case http.StatusForbidden, http.StatusUnauthorized:
			marker = services.ErrAuthRequired
		case http.StatusTooManyRequests:
			marker = services.ErrRateLimited
		}
		return services.Wrap(marker, "acquire", "direct",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return services.Wrap(services.ErrProcessing, "acquire", "direct", "cannot create output file", err)
	}
	defer out.Close()

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	written, err := io.Copy(out, reader)
	if err != nil {
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrNetwork, "acquire", "direct", "download interrupted", err)
	}
	if maxBytes > 0 && written > maxBytes {
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrValidation, "acquire", "direct",
			fmt.Sprintf("source too large (over %d bytes)", maxBytes), nil)
	}
	return nil
}
