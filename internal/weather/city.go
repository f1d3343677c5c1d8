package weather

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonicalize normalizes a user-entered city name: trim surrounding
// whitespace, lowercase, then title-case each word. "seoul", "SEOUL" and
// " Seoul " all map to "Seoul". The transform is idempotent.
//
// A cases.Caser is stateful and not safe for concurrent use, so one is
// built per call rather than shared between handlers and the scheduler.
func Canonicalize(city string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(city)))
}

// CanonicalizeAll maps every input through Canonicalize, drops entries
// that canonicalize to empty, and deduplicates preserving the first
// occurrence of each canonical name.
func CanonicalizeAll(cities []string) []CityRequest {
	seen := make(map[string]bool, len(cities))
	out := make([]CityRequest, 0, len(cities))
	for _, c := range cities {
		canon := Canonicalize(c)
		if canon == "" || seen[canon] {
			continue
		}
		seen[canon] = true
		out = append(out, CityRequest{City: c, Canonical: canon})
	}
	return out
}
