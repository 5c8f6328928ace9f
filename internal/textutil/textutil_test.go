package textutil_test

import (
	"testing"

	"resyncd/internal/textutil"
)

func TestTitleMatches(t *testing.T) {
	cases := []struct {
		name   string
		result string
		artist string
		track  string
		want   bool
	}{
		{"artist in title", "Daft Punk - One More Time (Official)", "Daft Punk", "One More Time", true},
		{"track only", "one more time [lyrics]", "Someone Else", "One More Time", true},
		{"case folding", "DAFT PUNK LIVE", "daft punk", "harder better", true},
		{"diacritics", "Beyonce - Halo", "Beyoncé", "Halo", true},
		{"no match", "Unrelated upload", "Daft Punk", "One More Time", false},
		{"empty result", "", "Daft Punk", "One More Time", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := textutil.TitleMatches(tc.result, tc.artist, tc.track)
			if got != tc.want {
				t.Fatalf("TitleMatches(%q, %q, %q) = %v, want %v", tc.result, tc.artist, tc.track, got, tc.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	got := textutil.SanitizeFileName(` artist/track: "final"? `)
	if got != "artist-track- final" {
		t.Fatalf("unexpected sanitized name: %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := textutil.SanitizeToken("My Track (2024)!"); got != "my_track__2024" {
		t.Fatalf("unexpected token: %q", got)
	}
	if got := textutil.SanitizeToken("   "); got != "unknown" {
		t.Fatalf("expected fallback token, got %q", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := textutil.NewFingerprint("midnight city synthwave remix")
	b := textutil.NewFingerprint("midnight city official audio")
	c := textutil.NewFingerprint("completely unrelated words here")

	if sim := textutil.CosineSimilarity(a, b); sim <= 0 {
		t.Fatalf("expected overlap similarity > 0, got %v", sim)
	}
	if sim := textutil.CosineSimilarity(a, c); sim != 0 {
		t.Fatalf("expected disjoint similarity 0, got %v", sim)
	}
	if sim := textutil.CosineSimilarity(nil, b); sim != 0 {
		t.Fatalf("expected nil fingerprint similarity 0, got %v", sim)
	}
}
