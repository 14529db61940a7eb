package fetch

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

// DecodeText turns markup bytes into a UTF-8 string and never fails. Order:
// a charset declared by BOM or Content-Type, then a <meta> declaration when
// the bytes are not valid UTF-8, then UTF-8, then ISO-8859-1, which maps every
// byte. windows-1252 is also the detector's default guess, so an uncertain
// windows-1252 answer falls through to ISO-8859-1.
func DecodeText(body []byte, contentType string) string {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	useDeclared := certain && !strings.EqualFold(name, "utf-8")
	if !certain && !utf8.Valid(body) && !strings.EqualFold(name, "utf-8") && !strings.EqualFold(name, "windows-1252") {
		useDeclared = true
	}
	if useDeclared {
		if out, err := enc.NewDecoder().Bytes(body); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(body) {
		return strings.TrimPrefix(string(body), "\ufeff")
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		// unreachable for a single-byte table, kept total anyway
		return strings.ToValidUTF8(string(body), "\uFFFD")
	}
	return string(out)
}
