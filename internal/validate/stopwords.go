package validate

import (
	"strings"
	"unicode"
)

// stopwords are function words ignored when comparing content.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "these": true, "those": true, "there": true, "their": true,
	"what": true, "which": true, "who": true, "how": true, "when": true,
	"where": true, "why": true, "very": true, "just": true, "also": true,
}

// contentWords splits text into unique lowercase non-stopword tokens.
func contentWords(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool)
	for _, w := range words {
		if len([]rune(w)) < 2 || stopwords[w] || pronouns[w] {
			continue
		}
		out[w] = true
	}
	return out
}

// pronouns are the first and second person forms whose use carries voice.
var pronouns = map[string]bool{
	"i": true, "me": true, "my": true, "mine": true, "myself": true,
	"we": true, "us": true, "our": true, "ours": true, "ourselves": true,
	"you": true, "your": true, "yours": true, "yourself": true, "yourselves": true,
}

func pronounCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if pronouns[w] {
			counts[w]++
		}
	}
	return counts
}
