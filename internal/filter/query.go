package filter

import "strings"

// Build composes the query string sent to the forum. Trimmed free text comes
// first, then every filter in order, separated by single spaces. No escaping
// is done; kind templates already produce valid terms.
// Blank text and filters rendering to blank terms are skipped, so an input
// with nothing to search for yields "".
func Build(freeText string, filters []Filter) string {
	parts := make([]string, 0, len(filters)+1)
	if text := strings.TrimSpace(freeText); text != "" {
		parts = append(parts, text)
	}
	for _, f := range filters {
		if term := f.String(); strings.TrimSpace(term) != "" {
			parts = append(parts, term)
		}
	}
	return strings.Join(parts, " ")
}
