package memory

import "strings"

// tokenize lowercases text, splits on non-alphanumeric runs, drops
// tokens of length <= 1, and stems each surviving token.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 1 {
			tokens = append(tokens, stem(cur.String()))
		}
		cur.Reset()
	}

	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// stem applies a compact suffix-stripping stemmer: a fixed ordered set
// of suffix rules, each guarded by a minimum stem length so short
// words are left untouched.
func stem(tok string) string {
	type rule struct {
		suffix  string
		minLen  int // minimum length of tok for the rule to apply
		replace string
	}
	rules := []rule{
		{"ational", 10, "ate"},
		{"tion", 7, ""},
		{"ness", 7, ""},
		{"ment", 7, ""},
		{"able", 7, ""},
		{"ible", 7, ""},
		{"ing", 6, ""},
		{"ies", 5, "y"},
		{"es", 5, ""},
		{"ed", 5, ""},
		{"ly", 5, ""},
	}

	for _, r := range rules {
		if strings.HasSuffix(tok, r.suffix) && len(tok) >= r.minLen {
			return tok[:len(tok)-len(r.suffix)] + r.replace
		}
	}

	// Trailing -s guarded against -ss (e.g. "class" stays "class").
	if strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") && len(tok) > 3 {
		return tok[:len(tok)-1]
	}

	return tok
}

// tokenizeWeighted tokenizes content and key, duplicating the key's
// tokens to weight them 2x in the combined token list.
func tokenizeWeighted(key, content string) []string {
	keyTokens := tokenize(key)
	tokens := append([]string{}, keyTokens...)
	tokens = append(tokens, keyTokens...)
	tokens = append(tokens, tokenize(content)...)
	return tokens
}
