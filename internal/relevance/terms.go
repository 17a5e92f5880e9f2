package relevance

import "strings"

// terms extracts the distinct matchable terms of text: non-stopword words
// of at least minLen characters, plus bare numbers of any length.
func terms(text string, minLen int) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})
	out := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if isNumber(tok) || (len(tok) >= minLen && !isStopword(tok)) {
			out[tok] = struct{}{}
		}
	}
	return out
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

func isNumber(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true, "from": true,
	"was": true, "are": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "can": true, "this": true, "that": true,
	"these": true, "those": true, "you": true, "she": true, "they": true, "what": true,
	"which": true, "who": true, "when": true, "where": true, "why": true, "how": true,
	"our": true, "your": true, "their": true, "into": true, "about": true, "need": true,
	"needs": true, "want": true, "wants": true, "job": true, "quote": true, "please": true,
	"new": true, "also": true, "some": true, "any": true, "all": true, "per": true,
}

func isStopword(token string) bool {
	return stopwords[token]
}
