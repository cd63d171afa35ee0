package eval

import (
	"strings"
	"unicode"
)

// #region stopwords
// stopwords are dropped before measuring query/response overlap.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"i": true, "you": true, "is": true, "are": true,
}

// tokenSet splits text into unique lowercase non-stopword tokens.
// Apostrophes stay inside words so contractions remain one token.
func tokenSet(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, "'")
		if w == "" || stopwords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

// #endregion stopwords
