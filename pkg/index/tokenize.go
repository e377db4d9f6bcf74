package index

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// anything that is not a letter, digit, whitespace or hyphen
var stripChars = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)

// Tokenize normalizes free text into index query tokens. Quotes and
// punctuation are stripped, hyphens survive, and tokens that carry no letter
// or digit are dropped. A nil result means there is nothing to search for.
func Tokenize(text string) []string {
	text = norm.NFC.String(text)
	text = stripChars.ReplaceAllString(text, " ")

	var tokens []string
	for _, field := range strings.Fields(text) {
		if !strings.ContainsFunc(field, isWordRune) {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// MatchExpression renders tokens as an FTS5 query where every token is a
// quoted prefix term and all terms must match. Tokens never contain quotes,
// so no further escaping is required.
func MatchExpression(tokens []string) string {
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, `"`+tok+`"*`)
	}
	return strings.Join(terms, " ")
}
