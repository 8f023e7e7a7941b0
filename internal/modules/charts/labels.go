// Package charts assembles presentation-ready widget results (KPI, table,
// pie/bar/line chart, heatmap) from record snapshots.
package charts

import "strings"

// uppercaseFields are group fields whose labels render fully uppercased
// (codes, not words).
var uppercaseFields = map[string]bool{
	"credit_rating": true,
	"branch_code":   true,
	"currency":      true,
}

// FormatGroupLabel renders a raw group key as a display label.
// Code-like fields uppercase; sector lowercases first so mixed-case input
// normalizes; everything else (including compound fields like
// collateral_type) replaces underscores with spaces and title-cases.
func FormatGroupLabel(field, key string) string {
	switch {
	case uppercaseFields[field]:
		return strings.ToUpper(key)
	case field == "sector":
		return titleWords(strings.ToLower(key))
	default:
		return titleWords(strings.ReplaceAll(key, "_", " "))
	}
}

// titleWords capitalizes the first letter of each space-separated word,
// leaving the rest of the word untouched.
func titleWords(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// droppedLabel reports whether a raw group key disqualifies its group:
// empty keys and the string literal "null" in either casing are excluded.
func droppedLabel(key string) bool {
	return key == "" || key == "null" || key == "NULL"
}
