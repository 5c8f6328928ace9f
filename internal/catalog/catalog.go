package catalog

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"log/slog"

	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"

	"resyncd/internal/logging"
	"resyncd/internal/services"
)

// DefaultTolerance is the BPM window used when none is requested.
const DefaultTolerance = 5

// ErrNoMatch is returned when no track falls inside the tempo window.
var ErrNoMatch = errors.New("catalog: no matching tracks")

// Track is one entry in the track library.
type Track struct {
	ID       string  `toml:"id"`
	Artist   string  `toml:"artist"`
	Title    string  `toml:"title"`
	BPM      float64 `toml:"bpm"`
	Platform string  `toml:"platform"`
	URL      string  `toml:"url"`
	Duration float64 `toml:"duration,omitempty"`
}

// Query returns the search string used to locate the track on its platform.
func (t Track) Query() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

type library struct {
	Tracks []Track `toml:"tracks"`
}

// Catalog is an in-memory track library loaded from a TOML file.
type Catalog struct {
	mu     sync.RWMutex
	tracks []Track
	logger *slog.Logger
	rng    *rand.Rand
}

// Load reads the track library at path. A missing file yields an empty
// catalog rather than an error so tempo-matched operations degrade to a
// clear no-match result.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	cat := &Catalog{
		logger: logging.NewComponentLogger(logger, "catalog"),
		rng:    rand.New(rand.NewSource(rand.Int63())), //nolint:gosec
	}

	if strings.TrimSpace(path) == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cat.logger.Warn("track library missing, tempo matching disabled",
				logging.String("path", path))
			return cat, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "load", "cannot read track library", err)
	}

	var lib library
	if err := toml.Unmarshal(data, &lib); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "load", "track library is not valid TOML", err)
	}

	valid := lo.Filter(lib.Tracks, func(track Track, _ int) bool {
		return track.BPM > 0 && strings.TrimSpace(track.Title) != ""
	})
	if dropped := len(lib.Tracks) - len(valid); dropped > 0 {
		cat.logger.Warn("skipping malformed track entries", logging.Int("dropped", dropped))
	}

	cat.tracks = valid
	cat.logger.Info("track library loaded",
		logging.String("path", path),
		logging.Int("tracks", len(valid)))
	return cat, nil
}

// Len reports the number of usable tracks.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tracks)
}

// MatchTempo returns every track within tolerance BPM of target.
func (c *Catalog) MatchTempo(target float64, tolerance float64) []Track {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Filter(c.tracks, func(track Track, _ int) bool {
		return track.BPM >= target-tolerance && track.BPM <= target+tolerance
	})
}

// PickTempo selects one track uniformly at random from the tempo window.
func (c *Catalog) PickTempo(target float64, tolerance float64) (Track, error) {
	matches := c.MatchTempo(target, tolerance)
	if len(matches) == 0 {
		return Track{}, fmt.Errorf("%w near %.0f BPM", ErrNoMatch, target)
	}

	c.mu.Lock()
	pick := matches[c.rng.Intn(len(matches))]
	c.mu.Unlock()

	c.logger.Info("selected track",
		logging.String("artist", pick.Artist),
		logging.String("title", pick.Title),
		logging.Float64("bpm", pick.BPM))
	return pick, nil
}
