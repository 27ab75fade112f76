// Package genre collapses free-form genre tags into a small, fixed set of display buckets.
//
// Provider tags ("east coast hip hop", "korean r&b") and inferred genres are matched against an
// ordered rule list. The first rule with a keyword contained in the lower-cased tag wins, so
// earlier rules take priority: "korean pop" is K-Pop even though it also contains "pop".
// Tags matching no rule are kept, title-cased.
package genre

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Rule maps any tag containing one of Keywords to Bucket.
type Rule struct {
	Bucket   string
	Keywords []string
}

// Rules lists the buckets in priority order.
var Rules = []Rule{
	{Bucket: "K-Pop", Keywords: []string{"k-pop", "korean pop", "k pop", "kpop", "korean r&b", "korean indie"}},
	{Bucket: "J-Pop / Anime", Keywords: []string{"j-pop", "japanese pop", "anime", "j pop", "jpop", "j-rock", "japanese rock", "visual kei", "j-idol"}},
	{Bucket: "Pop", Keywords: []string{"pop", "electropop", "dance pop", "synth-pop", "indie pop", "art pop", "power pop", "teen pop", "europop"}},
	{Bucket: "Hip-Hop", Keywords: []string{"hip hop", "rap", "trap", "hip-hop", "underground hip hop", "east coast hip hop", "west coast rap", "gangster rap"}},
	{Bucket: "R&B / Soul", Keywords: []string{"r&b", "soul", "neo soul", "contemporary r&b", "urban contemporary", "funk"}},
	{Bucket: "Rock", Keywords: []string{"rock", "indie rock", "alternative rock", "classic rock", "hard rock", "soft rock", "garage rock", "punk rock", "post-punk", "grunge", "emo", "metalcore", "metal", "heavy metal"}},
	{Bucket: "Electronic", Keywords: []string{"edm", "electronic", "house", "techno", "trance", "dubstep", "drum and bass", "dnb", "electro", "ambient", "lo-fi", "chillwave", "synthwave"}},
	{Bucket: "Latin", Keywords: []string{"latin", "reggaeton", "latin pop", "salsa", "bachata", "cumbia", "latin hip hop"}},
	{Bucket: "Classical", Keywords: []string{"classical", "orchestral", "instrumental", "piano", "chamber music", "opera"}},
	{Bucket: "Country / Folk", Keywords: []string{"country", "folk", "americana", "bluegrass", "singer-songwriter"}},
}

// Normalize returns the bucket of the first rule matching tag, or tag title-cased when no rule matches.
func Normalize(tag string) string {
	g := strings.ToLower(strings.TrimSpace(tag))
	for _, r := range Rules {
		for _, kw := range r.Keywords {
			if strings.Contains(g, kw) {
				return r.Bucket
			}
		}
	}
	return Title(strings.TrimSpace(tag))
}

// NormalizeAll normalizes tags and returns the distinct buckets in first-seen order.
func NormalizeAll(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if strings.TrimSpace(t) == "" {
			continue
		}
		b := Normalize(t)
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// Title upper-cases the first letter of each word and lower-cases the rest.
//
// Hyphens and spaces both start a new word; an apostrophe between letters does not.
func Title(s string) string {
	// A Caser keeps state and must not be shared between goroutines.
	return cases.Title(language.Und).String(s)
}
