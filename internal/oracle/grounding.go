package oracle

import (
	"strings"
	"unicode"
)

// Grounded reports whether excerpt is drawn from source: either a verbatim
// substring after case and whitespace folding, or at least minRatio of its
// words appear in the source. A non-positive minRatio accepts everything.
func Grounded(excerpt, source string, minRatio float64) bool {
	if minRatio <= 0 {
		return true
	}
	ex := words(excerpt)
	if len(ex) == 0 {
		return false
	}
	src := words(source)
	if strings.Contains(" "+strings.Join(src, " ")+" ", " "+strings.Join(ex, " ")+" ") {
		return true
	}
	vocab := make(map[string]struct{}, len(src))
	for _, w := range src {
		vocab[w] = struct{}{}
	}
	hits := 0
	for _, w := range ex {
		if _, ok := vocab[w]; ok {
			hits++
		}
	}
	return float64(hits)/float64(len(ex)) >= minRatio
}

// words lower-cases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
