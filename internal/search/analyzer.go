package search

import (
	"strings"
	"unicode"
)

// Analyze splits text into lowercase terms on every rune that is not a
// letter or digit. Terms are returned once each, in first-seen order.
func Analyze(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(fields))
	terms := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// TermContains reports whether a query term occurs anywhere inside an
// indexed term, so "hel" and "ello" both match "hello".
func TermContains(indexed, query string) bool {
	return query != "" && strings.Contains(indexed, query)
}

// Matches reports whether any query term occurs inside any of the field's terms
func Matches(fieldTerms, queryTerms []string) bool {
	for _, q := range queryTerms {
		for _, t := range fieldTerms {
			if TermContains(t, q) {
				return true
			}
		}
	}
	return false
}
