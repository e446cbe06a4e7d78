package nlp

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
)

// DefaultMaxKeywords bounds keyword extraction when callers pass max <= 0.
const DefaultMaxKeywords = 5

// noun part-of-speech tags kept as keyword candidates.
var keywordTags = map[string]struct{}{
	"NN": {}, "NNS": {}, "NNP": {}, "NNPS": {},
}

// ProseExtractor extracts noun keywords from chat lines using part-of-speech
// tagging.
type ProseExtractor struct{}

// NewProseExtractor creates a keyword extractor.
func NewProseExtractor() *ProseExtractor {
	return &ProseExtractor{}
}

// Keywords returns up to max keywords: alphabetic, stopword-filtered tokens
// tagged as nouns, ranked by frequency. Ties keep first-seen order so the
// result is deterministic for identical input.
func (e *ProseExtractor) Keywords(text string, max int) []string {
	if max <= 0 {
		max = DefaultMaxKeywords
	}
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	candidates := make([]string, 0, 8)
	for _, token := range strings.Fields(text) {
		lower := strings.ToLower(token)
		if !isAlpha(lower) || isStopword(lower) {
			continue
		}
		candidates = append(candidates, lower)
	}
	if len(candidates) == 0 {
		return []string{}
	}

	doc, err := prose.NewDocument(strings.Join(candidates, " "), prose.WithExtraction(false))
	if err != nil {
		slog.Error("Keyword extraction failed", "error", err)
		return []string{}
	}

	counts := make(map[string]int)
	order := make([]string, 0, len(candidates))
	for _, tok := range doc.Tokens() {
		if _, ok := keywordTags[tok.Tag]; !ok {
			continue
		}
		if counts[tok.Text] == 0 {
			order = append(order, tok.Text)
		}
		counts[tok.Text]++
	}

	firstSeen := make(map[string]int, len(order))
	for i, kw := range order {
		firstSeen[kw] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	if len(order) > max {
		order = order[:max]
	}
	return order
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func isStopword(s string) bool {
	_, ok := stopwords[s]
	return ok
}

// A compact English stopword set; enough to keep chat filler out of the
// keyword ranking.
var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "again": {}, "all": {}, "also": {},
	"am": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "because": {}, "been": {}, "before": {}, "being": {}, "but": {},
	"by": {}, "can": {}, "could": {}, "did": {}, "do": {}, "does": {},
	"doing": {}, "down": {}, "during": {}, "each": {}, "few": {}, "for": {},
	"from": {}, "further": {}, "had": {}, "has": {}, "have": {}, "having": {},
	"he": {}, "her": {}, "here": {}, "hers": {}, "him": {}, "his": {},
	"how": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "just": {}, "me": {}, "more": {}, "most": {}, "my": {},
	"no": {}, "nor": {}, "not": {}, "now": {}, "of": {}, "off": {}, "on": {},
	"once": {}, "only": {}, "or": {}, "other": {}, "our": {}, "out": {},
	"over": {}, "own": {}, "same": {}, "she": {}, "so": {}, "some": {},
	"such": {}, "than": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "those": {},
	"through": {}, "to": {}, "too": {}, "under": {}, "until": {}, "up": {},
	"very": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "who": {}, "whom": {}, "why": {},
	"will": {}, "with": {}, "you": {}, "your": {}, "yours": {},
}
