package oracle

import "unicode/utf8"

// DefaultMaxChars bounds the text submitted per call.
const DefaultMaxChars = 25000

// Truncate returns the first n characters of text. Cutting by character
// rather than byte keeps the result valid UTF-8; the cut point depends only
// on text and n.
func Truncate(text string, n int) string {
	if n <= 0 || len(text) <= n {
		// a string of at most n bytes has at most n characters
		return text
	}
	i, count := 0, 0
	for i < len(text) && count < n {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
		count++
	}
	return text[:i]
}
