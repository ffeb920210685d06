// Package match correlates markets with news items by keyword overlap.
package match

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTokenLength is the shortest token kept by Extract, in runes.
const MinTokenLength = 3

// Set is a normalized, de-duplicated set of keywords.
type Set map[string]struct{}

// Has reports whether the set contains token.
func (s Set) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Len returns the number of keywords.
func (s Set) Len() int { return len(s) }

// stopWords are dropped by Extract: grammatical words, news fillers and
// words that appear in nearly every market title.
var stopWords = toSet(
	// articles, conjunctions, prepositions
	"the", "and", "but", "for", "with", "from", "into", "over", "through", "after", "before",
	"between", "under", "about", "out", "again", "than", "nor", "per", "via", "upon", "onto",
	// auxiliaries
	"are", "was", "were", "been", "being", "have", "has", "had", "does", "did", "will", "would",
	"could", "should", "may", "might", "must", "shall", "can", "need",
	// pronouns and determiners
	"this", "that", "these", "those", "its", "his", "her", "their", "they", "them", "our",
	"you", "your", "who", "what", "which", "whom", "some", "any", "all", "both", "each",
	"few", "many", "much", "own", "same", "other", "such",
	// adverbs and fillers
	"not", "only", "very", "just", "also", "there", "when", "more", "most", "new", "first",
	"last", "long", "great", "little", "says", "said", "say", "according", "amid", "how", "why",
	// market vocabulary
	"market", "markets", "price", "prices", "higher", "lower", "yes", "year", "years",
	"today", "yesterday", "tomorrow", "week", "month", "above", "below", "least", "end",
)

func toSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Extract tokenizes text into its keyword set. Tokens are split on any rune that is
// neither a letter nor a digit, lower-cased, and kept only when at least
// MinTokenLength runes long and not a stop word. The result may be empty.
func Extract(text string) Set {
	out := make(Set)
	for _, tok := range strings.FieldsFunc(text, isSeparator) {
		if utf8.RuneCountInString(tok) < MinTokenLength {
			continue
		}
		tok = strings.ToLower(tok)
		if stopWords.Has(tok) {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
