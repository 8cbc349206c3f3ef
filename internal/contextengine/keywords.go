package contextengine

import (
	"strings"
	"unicode"
)

// stopwords is the closed list spec.md §4.6 phase 3 calls for: common
// English function words plus generic coding verbs that would otherwise
// dominate every keyword-phase query.
var stopwords = map[string]bool{
	"a": true, "an": true, "i": true, "the": true, "and": true, "or": true, "but": true,
	"if": true, "then": true, "else": true, "for": true, "of": true,
	"to": true, "in": true, "on": true, "at": true, "by": true, "with": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"as": true, "from": true, "into": true, "about": true, "can": true,
	"do": true, "does": true, "did": true, "how": true, "what": true,
	"why": true, "where": true, "when": true, "which": true, "who": true,
	"make": true, "makes": true, "use": true, "using": true, "used": true,
	"get": true, "gets": true, "set": true, "sets": true, "add": true,
	"adds": true, "update": true, "updates": true, "fix": true, "fixes": true,
	"change": true, "changes": true, "implement": true, "create": true,
	"write": true, "please": true, "need": true, "needs": true, "want": true,
	"code": true, "function": true, "file": true,
}

// extractKeywords lowercases q, strips punctuation, removes stopwords and
// duplicates, and returns what remains in first-seen order (spec.md §4.6
// phase 3).
func extractKeywords(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	seen := make(map[string]bool, len(fields))
	var keywords []string
	for _, f := range fields {
		if f == "" || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		keywords = append(keywords, f)
	}
	return keywords
}
