package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeTitle lowercases a title and strips diacritics so that search
// results can be compared regardless of platform capitalization or accents.
func NormalizeTitle(value string) string {
	stripped, _, err := transform.String(diacriticStripper, value)
	if err != nil {
		stripped = value
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

// TitleMatches reports whether a search result title plausibly belongs to
// the given artist and track. A result is accepted when its title contains
// either the artist name or the track title after normalization.
func TitleMatches(resultTitle, artist, track string) bool {
	title := NormalizeTitle(resultTitle)
	if title == "" {
		return false
	}
	if a := NormalizeTitle(artist); a != "" && strings.Contains(title, a) {
		return true
	}
	if t := NormalizeTitle(track); t != "" && strings.Contains(title, t) {
		return true
	}
	return false
}
