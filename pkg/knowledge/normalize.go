// Package knowledge resolves open-domain questions through the cache, search,
// generation and quality-gate cascade, and owns topic normalization.
package knowledge

import (
	"strings"
	"unicode/utf8"

	"github.com/oceanbase/trinity-go/pkg/extract"
)

// leadPhrases are rebuilt to the front of a topic key, in priority order.
var leadPhrases = []string{"how to", "what is"}

// Normalize derives the topic key of a query.
//
// The key is lower-cased with whitespace collapsed. When it contains "how to"
// (checked first) or "what is", every occurrence of that phrase is removed and
// the phrase is put back once at the front. Only the literal phrases collapse:
// "How do I boil eggs" and "how to boil eggs" produce different keys.
//
// Normalize is idempotent.
func Normalize(query string) string {
	key := collapse(strings.ToLower(query))
	// A "what is" rewrite can surface a "how to" that spanned the removed
	// phrase; iterate to the fixed point, which is reached in at most three steps.
	for i := 0; i < 4; i++ {
		next := normalizeOnce(key)
		if next == key {
			break
		}
		key = next
	}
	return key
}

func normalizeOnce(key string) string {
	for _, lead := range leadPhrases {
		if !strings.Contains(key, lead) {
			continue
		}
		rest := key
		for strings.Contains(rest, lead) {
			rest = collapse(strings.ReplaceAll(rest, lead, " "))
		}
		return strings.TrimSpace(lead + " " + rest)
	}
	return key
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Quality gate parameters.
const (
	Threshold   = 0.75
	HighQuality = 0.8
	LowQuality  = 0.5

	// MinAnswerLength is the rune count an answer must exceed to score HighQuality.
	MinAnswerLength = 50
)

// Score rates a generated answer by length only: more than MinAnswerLength
// characters scores HighQuality, anything else LowQuality.
func Score(answer string) float64 {
	if utf8.RuneCountInString(answer) > MinAnswerLength {
		return HighQuality
	}
	return LowQuality
}

// Accept reports whether answer passes the quality gate.
func Accept(answer string) bool {
	return Score(answer) >= Threshold
}

// Refine appends the named entities and noun phrases of query to it, giving
// the search engine more to match on.
func Refine(query string, ents *extract.Entities) string {
	terms := ents.Named()
	if len(terms) == 0 {
		return strings.TrimSpace(query)
	}
	return strings.TrimSpace(query + " " + strings.Join(terms, " "))
}
