package search

import (
	"strings"
	"unicode"
)

// stopWords are ignored when checking a hit for the query's wording.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "be": {}, "is": {}, "are": {}, "was": {},
	"to": {}, "of": {}, "and": {}, "or": {}, "in": {}, "that": {}, "have": {},
	"it": {}, "for": {}, "not": {}, "on": {}, "with": {}, "as": {}, "you": {},
	"do": {}, "does": {}, "at": {}, "this": {}, "but": {}, "by": {}, "from": {},
	"what": {}, "how": {}, "when": {}, "can": {}, "under": {}, "if": {},
}

// significantWords lowercases text, splits it on anything that is not a
// letter, digit or apostrophe and drops stop words.
func significantWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	words := fields[:0]
	for _, w := range fields {
		w = strings.Trim(w, "'")
		if _, stop := stopWords[w]; w == "" || stop {
			continue
		}
		words = append(words, w)
	}
	return words
}

// containsAllQueryWords reports whether every significant query word occurs
// in text. A query made only of stop words never matches.
func containsAllQueryWords(text, query string) bool {
	queryWords := significantWords(query)
	if len(queryWords) == 0 {
		return false
	}

	present := make(map[string]struct{})
	for _, w := range significantWords(text) {
		present[w] = struct{}{}
	}
	for _, w := range queryWords {
		if _, ok := present[w]; !ok {
			return false
		}
	}
	return true
}
