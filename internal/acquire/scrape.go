package acquire

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/gocolly/colly"

	"resyncd/internal/logging"
	"resyncd/internal/services"
)

// videoURLPattern matches the embedded media URL some platforms leave in
// their page source when the extractor API is blocked.
var videoURLPattern = regexp.MustCompile(`"video_url":"([^"]+)"`)

// scraper pulls media URLs straight out of page HTML. It is the last
// resort when an extractor is refused but the page itself still renders.
type scraper struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func newScraper(timeout time.Duration, logger *slog.Logger) *scraper {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &scraper{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "scraper"),
	}
}

// Fetch loads the page, extracts the embedded media URL, and downloads it.
func (s *scraper) Fetch(ctx context.Context, pageURL, outputPath string, maxBytes int64) error {
	mediaURL, err := s.extractMediaURL(pageURL)
	if err != nil {
		return err
	}
	s.logger.Debug("scraped media url", logging.String("page", pageURL))
	return fetchToFile(ctx, s.client, mediaURL, outputPath, maxBytes)
}

func (s *scraper) extractMediaURL(pageURL string) (string, error) {
	collector := colly.NewCollector(colly.UserAgent(mobileUserAgent))
	collector.SetRequestTimeout(s.timeout)

	var body string
	collector.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})

	if err := collector.Visit(pageURL); err != nil {
		return "", services.Wrap(services.ErrNetwork, "acquire", "scrape", "page load failed", err)
	}

	match := videoURLPattern.FindStringSubmatch(body)
	if match == nil {
		return "", services.Wrap(services.ErrNotFound, "acquire", "scrape",
			"no media url found in page source", nil)
	}
	return unescapeEmbeddedURL(match[1]), nil
}

// unescapeEmbeddedURL undoes the JSON escaping applied to URLs embedded in
// page source.
func unescapeEmbeddedURL(raw string) string {
	raw = strings.ReplaceAll(raw, `\u0026`, "&")
	raw = strings.ReplaceAll(raw, `\/`, "/")
	return strings.ReplaceAll(raw, `\`, "")
}
