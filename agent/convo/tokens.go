package convo

import "unicode/utf8"

// EstimateTokens approximates the tokenizer cost of mixed Arabic/Latin text
// without pulling in a tokenizer. ASCII runs average four characters per
// token; Arabic script tokenizes closer to one token per character, so
// non-ASCII runes are weighted four times heavier before dividing.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	weight := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r < utf8.RuneSelf {
			weight++
		} else {
			weight += 4
		}
		i += size
	}
	return (weight + 3) / 4
}
