package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

var (
	quotedPattern = regexp.MustCompile(`["“]([^"”]+)["”]`)
	personPattern = regexp.MustCompile(`\b(?:[Ww]ith|[Mm]eet|[Mm]y name is|[Cc]all me)\s+(\p{Lu}\p{L}*(?:\s+\p{Lu}\p{L}*)*)`)
	placePattern  = regexp.MustCompile(`\b(?:in|at|for|to|from|of)\s+(\p{Lu}\p{L}*(?:\s+\p{Lu}\p{L}*)*)`)
	capsPattern   = regexp.MustCompile(`\p{Lu}[\p{L}\p{N}]*(?:\s+\p{Lu}[\p{L}\p{N}]*)*`)
	timePatterns  = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[ T]\d{1,2}:\d{2})?\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?:\s*[ap]\.?m\.?)?`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s*[ap]\.?m\.?(?:\W|$)`),
		regexp.MustCompile(`(?i)\b(?:today|tomorrow|tonight|next week|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	}
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'&.+-]*`)
)

// chunkBreakers end a noun phrase. They are function words, question words and
// the command verbs the assistant understands.
var chunkBreakers = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true, "these": true, "those": true,
	"some": true, "any": true, "all": true, "my": true, "your": true, "our": true, "their": true,
	"his": true, "her": true, "its": true, "i": true, "me": true, "you": true, "we": true, "they": true,
	"he": true, "she": true, "it": true, "us": true, "them": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true, "am": true,
	"do": true, "does": true, "did": true, "can": true, "could": true, "would": true, "should": true,
	"will": true, "shall": true, "may": true, "might": true, "must": true, "have": true, "has": true, "had": true,
	"how": true, "what": true, "when": true, "where": true, "who": true, "whom": true, "why": true, "which": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true, "with": true, "by": true,
	"from": true, "about": true, "into": true, "over": true, "under": true, "as": true, "like": true,
	"and": true, "or": true, "but": true, "not": true, "no": true, "if": true, "then": true, "so": true,
	"please": true, "open": true, "play": true, "set": true, "search": true, "tell": true, "show": true,
	"find": true, "give": true, "get": true, "make": true, "remind": true, "schedule": true, "check": true,
	"let": true, "know": true, "want": true, "need": true, "there": true, "here": true, "up": true, "pm": true,
}

// RuleExtractor is a dependency-free Extractor built on regular expressions and
// capitalisation heuristics. It never fails.
type RuleExtractor struct{}

// NewRuleExtractor creates a RuleExtractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// Extract implements Extractor.
func (r *RuleExtractor) Extract(ctx context.Context, text string) (*Entities, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ents := &Entities{}
	taken := map[string]bool{}
	add := func(dst *[]string, v string) {
		v = strings.TrimSpace(v)
		if v == "" || taken[v] {
			return
		}
		taken[v] = true
		*dst = append(*dst, v)
	}

	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		add(&ents.WorksOfArt, m[1])
	}
	for _, m := range personPattern.FindAllStringSubmatch(text, -1) {
		add(&ents.Persons, m[1])
	}
	for _, m := range placePattern.FindAllStringSubmatch(text, -1) {
		add(&ents.Locations, m[1])
	}
	for _, loc := range capsPattern.FindAllStringIndex(text, -1) {
		span := text[loc[0]:loc[1]]
		if loc[0] == 0 || isSentenceStart(text, loc[0]) {
			// drop the capitalised first word; keep the rest of the span
			if i := strings.IndexAny(span, " \t"); i >= 0 {
				span = strings.TrimSpace(span[i:])
			} else {
				continue
			}
		}
		if covered(taken, span) {
			continue
		}
		add(&ents.Organizations, span)
	}
	for _, p := range timePatterns {
		for _, m := range p.FindAllString(text, -1) {
			m = strings.TrimRightFunc(m, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' })
			if covered(taken, m) {
				continue
			}
			add(&ents.Datetimes, m)
		}
	}
	for _, chunk := range nounPhrases(text) {
		add(&ents.NounPhrases, chunk)
	}
	return ents, nil
}

// nounPhrases returns maximal runs of content words in text.
func nounPhrases(text string) []string {
	var chunks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
		}
	}
	for _, loc := range wordPattern.FindAllStringIndex(text, -1) {
		word := strings.TrimRight(text[loc[0]:loc[1]], ".")
		if loc[0] > 0 && strings.ContainsAny(text[loc[0]-1:loc[0]], ",;:?!") {
			flush()
		}
		if chunkBreakers[strings.ToLower(word)] || isNumeric(word) {
			flush()
			continue
		}
		current = append(current, word)
		if strings.HasSuffix(text[loc[0]:loc[1]], ".") {
			flush()
		}
	}
	flush()
	return chunks
}

func isSentenceStart(text string, idx int) bool {
	before := strings.TrimRightFunc(text[:idx], unicode.IsSpace)
	return before == "" || strings.HasSuffix(before, ".") || strings.HasSuffix(before, "?") || strings.HasSuffix(before, "!")
}

func covered(taken map[string]bool, span string) bool {
	for v := range taken {
		if strings.Contains(v, span) {
			return true
		}
	}
	return false
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) && r != ':' {
			return false
		}
	}
	return true
}
